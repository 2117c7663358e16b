package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicity(t *testing.T) {
	tests := []struct {
		input        string
		expected     Periodicity
		installments int
		months       int
	}{
		{input: "annuel", expected: PeriodicityAnnual, installments: 1, months: 12},
		{input: "Semestriel", expected: PeriodicitySemiAnnual, installments: 2, months: 6},
		{input: "quarterly", expected: PeriodicityQuarterly, installments: 4, months: 3},
		{input: " mensuel ", expected: PeriodicityMonthly, installments: 12, months: 1},
		{input: "12", expected: PeriodicityMonthly, installments: 12, months: 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePeriodicity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.installments, p.Installments())
			assert.Equal(t, tt.months, p.MonthsPerInstallment())
			assert.True(t, p.IsValid())
		})
	}

	_, err := ParsePeriodicity("hebdomadaire")
	assert.Error(t, err)
	assert.False(t, Periodicity("hebdomadaire").IsValid())
}

func TestClaimsWithin(t *testing.T) {
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Parameters{
		EffectiveDate: &effective,
		PriorClaims: []LossRecord{
			{Year: 2018, Count: 3, Amount: decimal.NewFromInt(9000)},
			{Year: 2019, Count: 4, Amount: decimal.NewFromInt(700)},
			{Year: 2020, Count: 1, Amount: decimal.NewFromInt(300)},
			{Year: 2021, Count: 1, Amount: decimal.NewFromInt(1500)},
			{Year: 2023, Count: 2, Amount: decimal.NewFromInt(2500)},
		},
	}

	tests := []struct {
		name          string
		lookbackYears int
		wantCount     int
		wantAmount    int64
	}{
		{name: "five years ending with the effective year", lookbackYears: 5, wantCount: 4, wantAmount: 4300},
		{name: "single year", lookbackYears: 1, wantCount: 0, wantAmount: 0},
		{name: "two years", lookbackYears: 2, wantCount: 2, wantAmount: 2500},
		{name: "no lookback counts everything", lookbackYears: 0, wantCount: 11, wantAmount: 14000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, amount := p.ClaimsWithin(tt.lookbackYears)
			assert.Equal(t, tt.wantCount, count)
			assert.True(t, amount.Equal(decimal.NewFromInt(tt.wantAmount)), amount.String())
		})
	}
}

func TestSortedActivities(t *testing.T) {
	p := Parameters{Activities: []ActivityShare{
		{Code: "12", CASharePercent: decimal.NewFromInt(30)},
		{Code: "9", CASharePercent: decimal.NewFromInt(20)},
		{Code: "1", CASharePercent: decimal.NewFromInt(50)},
	}}

	sorted := p.SortedActivities()
	assert.Equal(t, "1", sorted[0].Code)
	assert.Equal(t, "9", sorted[1].Code)
	assert.Equal(t, "12", sorted[2].Code)
	assert.Equal(t, "12", p.Activities[0].Code)
}

func TestFormDataClone(t *testing.T) {
	original := FormData{"turnover": 200000.0}
	clone := original.Clone()
	clone["turnover"] = 500000.0

	assert.Equal(t, 200000.0, original["turnover"])
	assert.Equal(t, 500000.0, clone["turnover"])
}
