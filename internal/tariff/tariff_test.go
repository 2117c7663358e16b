package tariff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segyhp/premium-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallTable = `
version  = "test-1"
minimum_premium       = 500
min_turnover_per_head = 50000
max_turnover          = 1000000
main_code_max         = 2
restricted_territories = ["Mayotte"]

activity "1" {
  label = "Gros oeuvre"
  rate  = 0.01
}

activity "10" {
  label    = "Peinture"
  category = "finitions"
  rate     = 0.005
}

activity "3" {
  label     = "Piscines"
  rate      = 0.03
  insurable = false
}

turnover_band {
  coefficient = 0.8
}

turnover_band {
  up_to       = 100000
  coefficient = 1.2
}

adjustment "bilan" {
  when = "nonFournitureBilan"
  rate = 0.5
}

refusal "trop_de_sinistres" {
  when   = "nombreSinistres > 5"
  reason = "Trop de sinistres"
}

tax_override "pj" {
  rate = 0.134
}
`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(smallTable), "small.hcl")
	require.NoError(t, err)

	assert.Equal(t, "test-1", table.Version())
	assert.Equal(t, "EUR", table.Currency())
	assert.Len(t, table.Hash(), 64)
	assert.True(t, table.MinimumPremium().Equal(decimal.NewFromInt(500)))
	assert.True(t, table.MaxTurnover().Equal(decimal.NewFromInt(1000000)))

	activity, ok := table.Lookup("10")
	require.True(t, ok)
	assert.Equal(t, "Peinture", activity.Label)
	assert.Equal(t, "finitions", activity.Category)
	assert.True(t, activity.Rate.Equal(decimal.RequireFromString("0.005")))
	assert.True(t, activity.Insurable)

	pool, ok := table.Lookup("3")
	require.True(t, ok)
	assert.False(t, pool.Insurable)

	_, ok = table.Lookup("99")
	assert.False(t, ok)

	codes := make([]string, 0)
	for _, a := range table.Activities() {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"1", "3", "10"}, codes)

	assert.True(t, table.IsMainCode("1"))
	assert.False(t, table.IsMainCode("10"))
	assert.False(t, table.IsMainCode("abc"))
	assert.True(t, table.IsRestrictedTerritory("Mayotte"))
	assert.False(t, table.IsRestrictedTerritory("Métropole"))

	adjustments := table.Adjustments()
	require.Len(t, adjustments, 1)
	assert.Equal(t, domain.AdjustmentMultiplicative, adjustments[0].Mode)
	assert.Equal(t, "bilan", adjustments[0].Label)

	require.Len(t, table.Refusals(), 1)
	assert.Equal(t, "Trop de sinistres", table.Refusals()[0].Reason)

	fallback := decimal.RequireFromString("0.09")
	assert.True(t, table.TaxRate(ComponentPJ, fallback).Equal(decimal.RequireFromString("0.134")))
	assert.True(t, table.TaxRate(ComponentRCD, fallback).Equal(fallback))
}

func TestBandCoefficient(t *testing.T) {
	table, err := Parse([]byte(smallTable), "small.hcl")
	require.NoError(t, err)

	tests := []struct {
		turnover string
		expected string
	}{
		{turnover: "50000", expected: "1.2"},
		{turnover: "100000", expected: "1.2"},
		{turnover: "100000.01", expected: "0.8"},
		{turnover: "9000000", expected: "0.8"},
	}

	for _, tt := range tests {
		t.Run(tt.turnover, func(t *testing.T) {
			coefficient := table.BandCoefficient(decimal.RequireFromString(tt.turnover))
			assert.True(t, coefficient.Equal(decimal.RequireFromString(tt.expected)), "got %v", coefficient)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `version = `},
		{name: "missing version", src: `currency = "EUR"`},
		{name: "duplicate activity", src: `
version = "x"
activity "1" {
  label = "a"
  rate  = 0.01
}
activity "1" {
  label = "b"
  rate  = 0.02
}`},
		{name: "unknown rule variable", src: `
version = "x"
adjustment "typo" {
  when = "chiffreAffaire > 0"
  rate = 0.1
}`},
		{name: "unknown mode", src: `
version = "x"
adjustment "weird" {
  when = "qualification"
  mode = "exponential"
  rate = 0.1
}`},
		{name: "unknown tax component", src: `
version = "x"
tax_override "assistance" {
  rate = 0.09
}`},
		{name: "two open bands", src: `
version = "x"
turnover_band {
  coefficient = 1
}
turnover_band {
  coefficient = 2
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), tt.name+".hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	table, err := LoadDefault()
	require.NoError(t, err)

	main, ok := table.Lookup("1")
	require.True(t, ok)
	assert.True(t, main.Insurable)
	assert.True(t, table.IsMainCode("8"))
	assert.False(t, table.IsMainCode("9"))
	assert.True(t, table.IsRestrictedTerritory("Mayotte"))
	assert.NotEmpty(t, table.Adjustments())

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, table.Hash(), again.Hash())
}

func TestLoadFileHashFollowsContent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.hcl")
	second := filepath.Join(dir, "b.hcl")
	require.NoError(t, os.WriteFile(first, []byte(smallTable), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(smallTable+"\n# revised\n"), 0o600))

	a, err := LoadFile(first)
	require.NoError(t, err)
	b, err := LoadFile(second)
	require.NoError(t, err)

	assert.Equal(t, a.Version(), b.Version())
	assert.NotEqual(t, a.Hash(), b.Hash())

	_, err = LoadFile(filepath.Join(dir, "missing.hcl"))
	assert.Error(t, err)
}
