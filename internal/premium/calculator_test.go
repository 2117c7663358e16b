package premium

import (
	"errors"
	"testing"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/rules"
	"github.com/segyhp/premium-engine/internal/tariff"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	table, err := tariff.LoadDefault()
	require.NoError(t, err)
	return NewCalculator(table, []string{"courtier-dom@example.fr"})
}

// baseParams is scenario 1: 200 000 of turnover, all in main activity 1, monthly.
func baseParams() domain.Parameters {
	effective := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.Parameters{
		CADeclared:            d("200000"),
		Headcount:             2,
		Activities:            []domain.ActivityShare{{Code: "1", CASharePercent: d("100")}},
		Territory:             "Métropole",
		ManagementFeeRate:     d("0.10"),
		LegalProtectionAmount: d("106.00"),
		InsuranceTaxRate:      d("0.09"),
		Periodicity:           domain.PeriodicityMonthly,
		InstallmentFee:        d("40"),
		EffectiveDate:         &effective,
	}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, actual.Equal(d(expected)), append([]interface{}{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func TestCalculateScenarioOne(t *testing.T) {
	calc := newCalculator(t)

	result, err := calc.Calculate(baseParams())
	require.NoError(t, err)
	require.False(t, result.Refus)
	require.NotNil(t, result.Premium)

	assertDecimal(t, "200000", result.CACalculee)
	require.Len(t, result.Activites, 1)
	assert.Equal(t, "Voirie et réseaux divers (VRD)", result.Activites[0].Label)
	assertDecimal(t, "2400", result.Activites[0].Premium)

	// no experience declared: young company majoration of 10%
	require.Len(t, result.Majorations, 1)
	assert.Equal(t, "jeune_entreprise", result.Majorations[0].Name)
	assertDecimal(t, "240", result.Majorations[0].Amount)

	assertDecimal(t, "2640", result.PrimeRCD)
	assertDecimal(t, "106", result.Autres.PJ)
	assertDecimal(t, "264", result.Autres.FraisGestion)
	assertDecimal(t, "480", result.Autres.FraisFractionnement)
	assertDecimal(t, "744", result.Autres.Frais)
	assertDecimal(t, "0", result.Autres.Reprise)
	assertDecimal(t, "237.60", result.Autres.TaxeRCD)
	assertDecimal(t, "14.20", result.Autres.TaxePJ)
	assertDecimal(t, "66.96", result.Autres.TaxeFrais)
	assertDecimal(t, "318.76", result.Autres.TaxeAssurance)
	assertDecimal(t, "3490", result.PrimeTotal)
	assertDecimal(t, "3808.76", result.TotalTTC)

	assert.Equal(t, calc.Table().Version(), result.TariffVersion)
	assert.Equal(t, calc.Table().Hash(), result.TariffHash)
	assert.Len(t, result.Fingerprint, 64)
}

func TestCalculateIsAdditive(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.RepriseYears = 3
	params.Activities = []domain.ActivityShare{
		{Code: "3", CASharePercent: d("55.5")},
		{Code: "13", CASharePercent: d("44.5")},
	}
	params.CADeclared = d("333333.33")

	result, err := calc.Calculate(params)
	require.NoError(t, err)
	require.False(t, result.Refus)

	a := result.Autres
	assert.True(t, result.PrimeTotal.Equal(a.RCD.Add(a.PJ).Add(a.Frais).Add(a.Reprise)))
	assert.True(t, a.TaxeAssurance.Equal(a.TaxeRCD.Add(a.TaxePJ).Add(a.TaxeFrais).Add(a.TaxeReprise)))
	assert.True(t, result.TotalTTC.Equal(result.PrimeTotal.Add(a.TaxeAssurance)))
	for _, amount := range []decimal.Decimal{a.RCD, a.PJ, a.Frais, a.Reprise, a.TaxeAssurance, result.TotalTTC} {
		assert.True(t, amount.Equal(amount.Round(2)), "%s is not rounded to cents", amount)
	}
}

func TestCalculateMultiplicativeAdjustmentsCompound(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.ExperienceYears = 5
	params.Qualification = true
	params.DefaultingInsurer = true
	params.NoBalanceSheet = true

	result, err := calc.Calculate(params)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Majorations))
	for _, m := range result.Majorations {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"qualification", "assureur_defaillant", "non_fourniture_bilan"}, names)
	assertDecimal(t, "-120", result.Majorations[0].Amount)
	assertDecimal(t, "456", result.Majorations[1].Amount)
	assertDecimal(t, "1368", result.Majorations[2].Amount)
	assertDecimal(t, "4104", result.PrimeRCD)
}

func TestCalculateMinimumPremiumAndBand(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.CADeclared = d("50000")
	params.Headcount = 0
	params.ExperienceYears = 5
	params.Activities = []domain.ActivityShare{{Code: "13", CASharePercent: d("100")}}

	result, err := calc.Calculate(params)
	require.NoError(t, err)

	require.Len(t, result.Majorations, 2)
	assert.Equal(t, "tranche_ca", result.Majorations[0].Name)
	assertDecimal(t, "25", result.Majorations[0].Amount)
	assert.Equal(t, "prime_minimum", result.Majorations[1].Name)
	assertDecimal(t, "575", result.Majorations[1].Amount)
	assertDecimal(t, "850", result.PrimeRCD)
}

func TestCalculateTurnoverFloorPerHead(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.CADeclared = d("100000")
	params.Headcount = 3

	result, err := calc.Calculate(params)
	require.NoError(t, err)
	assertDecimal(t, "210000", result.CACalculee)
}

func TestCalculateReprise(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.ExperienceYears = 5
	params.RepriseYears = 3
	params.Periodicity = domain.PeriodicityAnnual

	result, err := calc.Calculate(params)
	require.NoError(t, err)
	assertDecimal(t, "2400", result.PrimeRCD)
	assertDecimal(t, "720", result.Autres.Reprise)
	assertDecimal(t, "64.80", result.Autres.TaxeReprise)
	assertDecimal(t, "0", result.Autres.FraisFractionnement)
}

func TestCalculateRefusals(t *testing.T) {
	calc := newCalculator(t)

	tests := []struct {
		name   string
		mutate func(p *domain.Parameters)
		reason string
	}{
		{
			name:   "restricted territory",
			mutate: func(p *domain.Parameters) { p.Territory = "Mayotte"; p.Requester = "agent@example.fr" },
			reason: "Mayotte",
		},
		{
			name: "restricted territory ignores invalid inputs",
			mutate: func(p *domain.Parameters) {
				p.Territory = "Mayotte"
				p.Activities = nil
				p.Periodicity = "hebdomadaire"
			},
			reason: "Territoire non couvert",
		},
		{
			name:   "uninsurable activity",
			mutate: func(p *domain.Parameters) { p.Activities = []domain.ActivityShare{{Code: "19", CASharePercent: d("100")}} },
			reason: "Piscines",
		},
		{
			name:   "turnover ceiling",
			mutate: func(p *domain.Parameters) { p.CADeclared = d("3500000") },
			reason: "plafond",
		},
		{
			name: "too many claims",
			mutate: func(p *domain.Parameters) {
				p.PriorClaims = []domain.LossRecord{{Year: 2022, Count: 2}, {Year: 2023, Count: 2}}
			},
			reason: "Nombre de sinistres",
		},
		{
			name: "heavy claims rule from the tariff",
			mutate: func(p *domain.Parameters) {
				p.PriorClaims = []domain.LossRecord{{Year: 2023, Count: 1, Amount: d("200000")}}
			},
			reason: "Sinistralité antérieure",
		},
		{
			name:   "reprise ceiling",
			mutate: func(p *domain.Parameters) { p.RepriseYears = 11 },
			reason: "Reprise du passé",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams()
			tt.mutate(&params)

			result, err := calc.Calculate(params)
			require.NoError(t, err)
			assert.True(t, result.Refus)
			assert.Contains(t, result.RefusReason, tt.reason)
			assert.Nil(t, result.Premium)
		})
	}
}

func TestCalculateWhitelistedRequester(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.Territory = "Mayotte"
	params.Requester = "Courtier-DOM@example.fr "

	result, err := calc.Calculate(params)
	require.NoError(t, err)
	assert.False(t, result.Refus)
}

func TestCalculateProductRule(t *testing.T) {
	calc := newCalculator(t)

	rule, err := rules.CompileRule("gros_ca", "caCalculee > 150000", "Produit réservé aux petites entreprises", tariff.KnownVariables())
	require.NoError(t, err)

	result, err := calc.Calculate(baseParams(), rule)
	require.NoError(t, err)
	assert.True(t, result.Refus)
	assert.Equal(t, "Produit réservé aux petites entreprises", result.RefusReason)
}

func TestCalculateValidation(t *testing.T) {
	calc := newCalculator(t)

	params := baseParams()
	params.Activities = []domain.ActivityShare{
		{Code: "1", CASharePercent: d("60")},
		{Code: "99", CASharePercent: d("30")},
	}
	params.InsuranceTaxRate = d("-0.09")
	params.Periodicity = "hebdomadaire"

	result, err := calc.Calculate(params)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, customError.ErrValidation))

	var validationErr *customError.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{domain.ParamActivities, domain.ParamPeriodicity, domain.ParamInsuranceTaxRate}, validationErr.Fields())

	codes := make([]string, 0)
	for _, v := range validationErr.Violations {
		if v.Field == domain.ParamActivities {
			codes = append(codes, v.Code)
		}
	}
	assert.Equal(t, []string{domain.ViolationUnknownCode, domain.ViolationShareSum}, codes)
}

func TestCalculateIsDeterministic(t *testing.T) {
	calc := newCalculator(t)

	first, err := calc.Calculate(baseParams())
	require.NoError(t, err)
	second, err := calc.Calculate(baseParams())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reordered := baseParams()
	reordered.Activities = []domain.ActivityShare{
		{Code: "9", CASharePercent: d("40")},
		{Code: "1", CASharePercent: d("60")},
	}
	ordered := baseParams()
	ordered.Activities = []domain.ActivityShare{
		{Code: "1", CASharePercent: d("60")},
		{Code: "9", CASharePercent: d("40")},
	}
	a, err := calc.Calculate(reordered)
	require.NoError(t, err)
	b, err := calc.Calculate(ordered)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := baseParams()
	changed.CADeclared = d("200001")
	assert.NotEqual(t, calc.Fingerprint(baseParams()), calc.Fingerprint(changed))
}

func TestFingerprint_TracksTerritoryWhitelist(t *testing.T) {
	table, err := tariff.LoadDefault()
	require.NoError(t, err)
	params := baseParams()

	tests := []struct {
		name      string
		a, b      []string
		wantEqual bool
	}{
		{name: "same whitelist", a: []string{"courtier-dom@example.fr"}, b: []string{"courtier-dom@example.fr"}, wantEqual: true},
		{name: "order and case do not matter", a: []string{"A@example.fr", "b@example.fr"}, b: []string{"b@example.fr", " a@example.fr"}, wantEqual: true},
		{name: "added requester", a: []string{"courtier-dom@example.fr"}, b: []string{"courtier-dom@example.fr", "agent@example.fr"}, wantEqual: false},
		{name: "whitelist removed", a: []string{"courtier-dom@example.fr"}, b: nil, wantEqual: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewCalculator(table, tt.a).Fingerprint(params)
			b := NewCalculator(table, tt.b).Fingerprint(params)
			assert.Equal(t, tt.wantEqual, a == b)
		})
	}
}
