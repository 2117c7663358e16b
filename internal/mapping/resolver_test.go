package mapping

import (
	"errors"
	"testing"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testProduct() (domain.MappingFields, domain.FormFields) {
	mapping := domain.MappingFields{
		domain.ParamCADeclared:      "turnover",
		domain.ParamHeadcount:       "staff",
		domain.ParamActivities:      "trades",
		domain.ParamTerritory:       "zone",
		domain.ParamQualification:   "qualified",
		domain.ParamPeriodicity:     "frequency",
		domain.ParamEffectiveDate:   "startDate",
		domain.ParamPriorClaims:     "claims",
		domain.ParamExperienceYears: "experience",
	}
	fields := domain.FormFields{
		"turnover":   domain.NumberField{FieldMeta: domain.FieldMeta{Label: "CA", Required: true}, Min: dec("0"), Max: dec("5000000")},
		"staff":      domain.NumberField{FieldMeta: domain.FieldMeta{Label: "Effectif", Required: true}, Min: dec("0"), Step: dec("1")},
		"trades":     domain.ActivityBreakdownField{FieldMeta: domain.FieldMeta{Label: "Activités", Required: true}, MainCodeMax: 8, MinMainSharePercent: dec("50")},
		"zone":       domain.SelectField{FieldMeta: domain.FieldMeta{Label: "Territoire"}, Options: []domain.Option{{Value: "Métropole"}, {Value: "Mayotte"}}},
		"qualified":  domain.CheckboxField{FieldMeta: domain.FieldMeta{Label: "Qualification"}},
		"frequency":  domain.SelectField{FieldMeta: domain.FieldMeta{Label: "Périodicité"}, Options: []domain.Option{{Value: "annuel"}, {Value: "mensuel"}}},
		"startDate":  domain.DateField{FieldMeta: domain.FieldMeta{Label: "Date d'effet"}},
		"claims":     domain.LossHistoryField{FieldMeta: domain.FieldMeta{Label: "Sinistres"}, MaxYears: 5},
		"experience": domain.NumberField{FieldMeta: domain.FieldMeta{Label: "Expérience"}, Min: dec("0")},
	}
	return mapping, fields
}

func validFormData() domain.FormData {
	return domain.FormData{
		"turnover":  200000.0,
		"staff":     2.0,
		"trades":    []interface{}{map[string]interface{}{"code": "1", "caSharePercent": 100.0}},
		"zone":      "Métropole",
		"qualified": "oui",
		"frequency": "mensuel",
		"startDate": "2024-03-01",
	}
}

func TestResolveAppliesMappingAndDefaults(t *testing.T) {
	mapping, fields := testProduct()
	resolver := NewResolver(StandardDefaults())

	params, err := resolver.Resolve(validFormData(), mapping, fields)
	require.NoError(t, err)

	assert.True(t, params.CADeclared.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 2, params.Headcount)
	require.Len(t, params.Activities, 1)
	assert.Equal(t, "1", params.Activities[0].Code)
	assert.Equal(t, "Métropole", params.Territory)
	assert.True(t, params.Qualification)
	assert.Equal(t, domain.PeriodicityMonthly, params.Periodicity)
	require.NotNil(t, params.EffectiveDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *params.EffectiveDate)

	assert.True(t, params.ManagementFeeRate.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, params.LegalProtectionAmount.Equal(decimal.RequireFromString("106")))
	assert.True(t, params.InsuranceTaxRate.Equal(decimal.RequireFromString("0.09")))
	assert.True(t, params.InstallmentFee.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 0, params.ExperienceYears)
	assert.False(t, params.DefaultingInsurer)
}

func TestResolveUnmappedOptionalUsesCanonicalName(t *testing.T) {
	mapping, fields := testProduct()
	data := validFormData()
	data[domain.ParamDefaultingInsurer] = true
	data[domain.ParamInsuranceTaxRate] = "0,134"

	params, err := NewResolver(StandardDefaults()).Resolve(data, mapping, fields)
	require.NoError(t, err)
	assert.True(t, params.DefaultingInsurer)
	assert.True(t, params.InsuranceTaxRate.Equal(decimal.RequireFromString("0.134")))
}

func TestResolveConfigurationError(t *testing.T) {
	mapping, fields := testProduct()
	delete(mapping, domain.ParamCADeclared)
	delete(mapping, domain.ParamHeadcount)

	_, err := NewResolver(StandardDefaults()).Resolve(validFormData(), mapping, fields)
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrConfiguration))
	assert.False(t, errors.Is(err, customError.ErrValidation))

	var configErr *customError.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, []string{domain.ParamCADeclared, domain.ParamHeadcount}, configErr.Parameters)
}

func TestResolveConfigurationErrorWithoutDefault(t *testing.T) {
	mapping, fields := testProduct()
	delete(mapping, domain.ParamPeriodicity)
	defaults := StandardDefaults()
	defaults.Periodicity = ""

	_, err := NewResolver(defaults).Resolve(validFormData(), mapping, fields)
	var configErr *customError.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, []string{domain.ParamPeriodicity}, configErr.Parameters)

	// the same product is fine once a default exists
	_, err = NewResolver(StandardDefaults()).Resolve(validFormData(), mapping, fields)
	assert.NoError(t, err)
}

func TestResolveMappingToUndeclaredField(t *testing.T) {
	mapping, fields := testProduct()
	mapping[domain.ParamCADeclared] = "chiffre"

	_, err := NewResolver(StandardDefaults()).Resolve(validFormData(), mapping, fields)
	var configErr *customError.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, []string{domain.ParamCADeclared}, configErr.Parameters)
}

func TestResolveCollectsAllViolations(t *testing.T) {
	mapping, fields := testProduct()
	data := validFormData()
	data["turnover"] = "beaucoup"
	data["staff"] = 2.5
	data["trades"] = []interface{}{
		map[string]interface{}{"code": "1", "caSharePercent": 20.0},
		map[string]interface{}{"code": "9", "caSharePercent": 80.0},
	}
	data["zone"] = "Guyane"
	data["startDate"] = "demain"

	_, err := NewResolver(StandardDefaults()).Resolve(data, mapping, fields)
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrValidation))

	var validationErr *customError.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"staff", "startDate", "trades", "turnover", "zone"}, validationErr.Fields())

	// one entry per field, conversion failures are not reported twice
	turnoverViolations := 0
	for _, v := range validationErr.Violations {
		if v.Field == "turnover" {
			turnoverViolations++
		}
	}
	assert.Equal(t, 1, turnoverViolations)
}

func TestResolveMissingRequiredAnswer(t *testing.T) {
	mapping, fields := testProduct()
	data := validFormData()
	delete(data, "turnover")
	data["trades"] = []interface{}{}

	_, err := NewResolver(StandardDefaults()).Resolve(data, mapping, fields)
	var validationErr *customError.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.True(t, validationErr.HasField("turnover"))
	assert.True(t, validationErr.HasField("trades"))
	for _, v := range validationErr.Violations {
		assert.Equal(t, domain.ViolationRequired, v.Code)
	}
}

func TestMergeOverridesLeavesOriginalUntouched(t *testing.T) {
	mapping, fields := testProduct()
	stored := validFormData()

	merged, err := MergeOverrides(stored, mapping, map[string]interface{}{
		domain.ParamCADeclared:        500000,
		domain.ParamDefaultingInsurer: true,
		domain.ParamEffectiveDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 500000, merged["turnover"])
	assert.Equal(t, true, merged[domain.ParamDefaultingInsurer])
	assert.Equal(t, "2025-01-01", merged["startDate"])
	assert.Equal(t, 200000.0, stored["turnover"])
	assert.NotContains(t, stored, domain.ParamDefaultingInsurer)

	params, err := NewResolver(StandardDefaults()).Resolve(merged, mapping, fields)
	require.NoError(t, err)
	assert.True(t, params.CADeclared.Equal(decimal.NewFromInt(500000)))
}

func TestMergeOverridesRejectsUnknownParameters(t *testing.T) {
	mapping, _ := testProduct()

	_, err := MergeOverrides(validFormData(), mapping, map[string]interface{}{"turnover": 1, "bonus": 2})
	var validationErr *customError.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"bonus", "turnover"}, validationErr.Fields())
}

func TestCanonicalNames(t *testing.T) {
	names := CanonicalNames()
	assert.Contains(t, names, domain.ParamCADeclared)
	assert.Contains(t, names, domain.ParamEffectiveDate)
	assert.True(t, IsCanonical(domain.ParamPeriodicity))
	assert.False(t, IsCanonical("turnover"))
}
