package utils

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "half rounds up", input: "10.005", expected: "10.01"},
		{name: "negative half rounds away from zero", input: "-10.005", expected: "-10.01"},
		{name: "below half rounds down", input: "10.0049", expected: "10"},
		{name: "already rounded", input: "106.00", expected: "106"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundMoney(decimal.RequireFromString(tt.input))
			assert.True(t, result.Equal(decimal.RequireFromString(tt.expected)),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestSplitEven(t *testing.T) {
	tests := []struct {
		name  string
		total string
		parts int
		first string
		last  string
	}{
		{name: "monthly split with residue", total: "1000.00", parts: 12, first: "83.33", last: "83.37"},
		{name: "exact quarterly split", total: "400.00", parts: 4, first: "100", last: "100"},
		{name: "annual keeps the total", total: "1234.56", parts: 1, first: "1234.56", last: "1234.56"},
		{name: "tiny amount never goes negative", total: "0.06", parts: 12, first: "0", last: "0.06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			parts := SplitEven(total, tt.parts)

			require.Len(t, parts, tt.parts)
			assert.True(t, parts[0].Equal(decimal.RequireFromString(tt.first)), "first part %v", parts[0])
			assert.True(t, parts[len(parts)-1].Equal(decimal.RequireFromString(tt.last)), "last part %v", parts[len(parts)-1])
			assert.True(t, SumDecimals(parts...).Equal(total))
		})
	}

	assert.Nil(t, SplitEven(decimal.NewFromInt(10), 0))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		months   int
		expected time.Time
	}{
		{
			name:     "plain month",
			start:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "end of month clamps in leap year",
			start:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "crosses the year",
			start:    time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC),
			months:   3,
			expected: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "twelve months",
			start:    time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			months:   12,
			expected: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonths(tt.start, tt.months))
		})
	}
}

func TestIsDateOverdue(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	assert.True(t, IsDateOverdue(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), now))
	assert.False(t, IsDateOverdue(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsDateOverdue(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), now))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
		wantErr  bool
	}{
		{name: "float", input: 200000.0, expected: "200000"},
		{name: "int", input: 42, expected: "42"},
		{name: "json number", input: json.Number("1234.56"), expected: "1234.56"},
		{name: "french string", input: "200 000,50", expected: "200000.5"},
		{name: "dot string", input: "0.09", expected: "0.09"},
		{name: "empty string", input: "  ", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "unsupported type", input: []int{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDecimal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Equal(decimal.RequireFromString(tt.expected)), "got %v", result)
		})
	}
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt("12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = ParseInt(2.5)
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, in := range []interface{}{true, "oui", "true", "1", 1.0} {
		b, err := ParseBool(in)
		require.NoError(t, err)
		assert.True(t, b, "%v", in)
	}
	for _, in := range []interface{}{false, "non", "false", "0", 0.0, ""} {
		b, err := ParseBool(in)
		require.NoError(t, err)
		assert.False(t, b, "%v", in)
	}
	_, err := ParseBool("peut-être")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	expected := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []interface{}{"2024-03-01", "2024-03-01T10:30:00Z", "01/03/2024", expected} {
		d, err := ParseDate(in)
		require.NoError(t, err)
		assert.Equal(t, expected, d)
	}

	_, err := ParseDate("March 1st")
	assert.Error(t, err)
}
