package cmd

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "numbers stay exact",
			pairs: []string{"chiffreAffaires=250000.10"},
			want:  map[string]interface{}{"chiffreAffaires": json.Number("250000.10")},
		},
		{
			name:  "bare words are strings",
			pairs: []string{"periodicite=mensuel", "dateEffet=2024-04-01"},
			want:  map[string]interface{}{"periodicite": "mensuel", "dateEffet": "2024-04-01"},
		},
		{
			name:  "JSON values keep their type",
			pairs: []string{"reprisePasse=true", `activites=[{"code":"1","part":100}]`},
			want: map[string]interface{}{
				"reprisePasse": true,
				"activites":    []interface{}{map[string]interface{}{"code": "1", "part": json.Number("100")}},
			},
		},
		{
			name:  "value may contain equals",
			pairs: []string{"note=a=b"},
			want:  map[string]interface{}{"note": "a=b"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"periodicite"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOverrides(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
