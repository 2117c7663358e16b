// Package mapping turns a quote's raw form answers into the canonical
// parameters the premium calculator works with.
//
// Each product names its form fields freely; its MappingFields dictionary
// says which form field carries which canonical parameter. A parameter the
// product does not map is read under its canonical name. Parameters with a
// documented default fall back to it when unanswered. A required parameter
// that the product can neither map nor default is a product configuration
// error, reported before any value is looked at.
package mapping

import (
	"fmt"
	"sort"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

type kind int

const (
	kindDecimal kind = iota
	kindInt
	kindBool
	kindString
	kindActivities
	kindClaims
	kindPeriodicity
	kindDate
)

type paramSpec struct {
	name     string
	kind     kind
	required bool
}

// parameters lists every canonical parameter in resolution order.
var parameters = []paramSpec{
	{name: domain.ParamCADeclared, kind: kindDecimal, required: true},
	{name: domain.ParamHeadcount, kind: kindInt, required: true},
	{name: domain.ParamActivities, kind: kindActivities, required: true},
	{name: domain.ParamTerritory, kind: kindString},
	{name: domain.ParamExperienceYears, kind: kindInt},
	{name: domain.ParamContinuousInsuranceYears, kind: kindInt},
	{name: domain.ParamQualification, kind: kindBool},
	{name: domain.ParamDefaultingInsurer, kind: kindBool},
	{name: domain.ParamNoBalanceSheet, kind: kindBool},
	{name: domain.ParamInactivityPeriod, kind: kindBool},
	{name: domain.ParamPriorClaims, kind: kindClaims},
	{name: domain.ParamRepriseYears, kind: kindInt},
	{name: domain.ParamManagementFeeRate, kind: kindDecimal, required: true},
	{name: domain.ParamLegalProtectionAmount, kind: kindDecimal, required: true},
	{name: domain.ParamInsuranceTaxRate, kind: kindDecimal, required: true},
	{name: domain.ParamPeriodicity, kind: kindPeriodicity, required: true},
	{name: domain.ParamInstallmentFee, kind: kindDecimal, required: true},
	{name: domain.ParamEffectiveDate, kind: kindDate},
}

// IsCanonical reports whether name is a canonical parameter.
func IsCanonical(name string) bool {
	for _, p := range parameters {
		if p.name == name {
			return true
		}
	}
	return false
}

// CanonicalNames returns every canonical parameter name.
func CanonicalNames() []string {
	names := make([]string, 0, len(parameters))
	for _, p := range parameters {
		names = append(names, p.name)
	}
	return names
}

// Defaults are the fallbacks for parameters a quote may leave unanswered.
type Defaults struct {
	ManagementFeeRate     decimal.Decimal
	LegalProtectionAmount decimal.Decimal
	InsuranceTaxRate      decimal.Decimal
	InstallmentFee        decimal.Decimal
	Periodicity           domain.Periodicity
}

// StandardDefaults returns the documented fallback values.
func StandardDefaults() Defaults {
	return Defaults{
		ManagementFeeRate:     decimal.RequireFromString("0.10"),
		LegalProtectionAmount: decimal.RequireFromString("106.00"),
		InsuranceTaxRate:      decimal.RequireFromString("0.09"),
		InstallmentFee:        decimal.NewFromInt(40),
		Periodicity:           domain.PeriodicityAnnual,
	}
}

func (d Defaults) lookup(name string) (interface{}, bool) {
	switch name {
	case domain.ParamManagementFeeRate:
		return d.ManagementFeeRate, true
	case domain.ParamLegalProtectionAmount:
		return d.LegalProtectionAmount, true
	case domain.ParamInsuranceTaxRate:
		return d.InsuranceTaxRate, true
	case domain.ParamInstallmentFee:
		return d.InstallmentFee, true
	case domain.ParamPeriodicity:
		if d.Periodicity == "" {
			return nil, false
		}
		return string(d.Periodicity), true
	}
	return nil, false
}

// Resolver maps form data onto canonical parameters. It holds no state beyond
// its defaults and is safe for concurrent use.
type Resolver struct {
	defaults Defaults
}

func NewResolver(defaults Defaults) *Resolver {
	return &Resolver{defaults: defaults}
}

// CheckConfiguration reports the required parameters a product can neither
// map nor default. formFields may be nil when the product declares no schema.
func (r *Resolver) CheckConfiguration(mapping domain.MappingFields, formFields domain.FormFields) []string {
	var missing []string
	for _, p := range parameters {
		if !p.required {
			continue
		}
		if _, ok := r.defaults.lookup(p.name); ok {
			continue
		}
		key, mapped := mapping.FieldFor(p.name)
		if !mapped {
			if _, declared := formFields[key]; !declared {
				missing = append(missing, p.name)
			}
			continue
		}
		if len(formFields) > 0 {
			if _, declared := formFields[key]; !declared {
				missing = append(missing, p.name)
			}
		}
	}
	return missing
}

// Resolve validates formData against the product schema and builds the
// canonical parameters. It returns a *customError.ConfigurationError when the
// product configuration is incomplete and a *customError.ValidationError
// listing every violation otherwise.
func (r *Resolver) Resolve(formData domain.FormData, mapping domain.MappingFields, formFields domain.FormFields) (*domain.Parameters, error) {
	if missing := r.CheckConfiguration(mapping, formFields); len(missing) > 0 {
		return nil, &customError.ConfigurationError{Parameters: missing}
	}

	var violations []customError.FieldViolation
	flagged := make(map[string]bool)

	// Declared constraints first, field by field
	for _, name := range formFields.Names() {
		spec := formFields[name]
		value := formData[name]
		if domain.IsEmpty(value) {
			if spec.Meta().Required {
				violations = append(violations, customError.FieldViolation{
					Field: name, Code: domain.ViolationRequired, Message: "is required",
				})
				flagged[name] = true
			}
			continue
		}
		if vs := spec.Validate(name, value); len(vs) > 0 {
			violations = append(violations, vs...)
			flagged[name] = true
		}
	}

	params := &domain.Parameters{}
	for _, p := range parameters {
		key, _ := mapping.FieldFor(p.name)
		value := formData[key]
		if domain.IsEmpty(value) {
			if def, ok := r.defaults.lookup(p.name); ok {
				value = def
			} else if p.required {
				if !flagged[key] {
					violations = append(violations, customError.FieldViolation{
						Field: key, Code: domain.ViolationRequired, Message: "is required",
					})
					flagged[key] = true
				}
				continue
			} else {
				continue
			}
		}

		if err := assign(params, p, value); err != nil && !flagged[key] {
			violations = append(violations, customError.FieldViolation{
				Field: key, Code: domain.ViolationInvalidType, Message: err.Error(),
			})
			flagged[key] = true
		}
	}

	if err := customError.NewValidationError(violations); err != nil {
		return nil, err
	}
	return params, nil
}

func assign(params *domain.Parameters, p paramSpec, value interface{}) error {
	switch p.kind {
	case kindDecimal:
		d, err := utils.ParseDecimal(value)
		if err != nil {
			return err
		}
		setDecimal(params, p.name, d)
	case kindInt:
		n, err := utils.ParseInt(value)
		if err != nil {
			return err
		}
		setInt(params, p.name, n)
	case kindBool:
		b, err := utils.ParseBool(value)
		if err != nil {
			return err
		}
		setBool(params, p.name, b)
	case kindString:
		s, err := utils.ParseString(value)
		if err != nil {
			return err
		}
		params.Territory = s
	case kindActivities:
		shares, err := domain.ParseActivities(value)
		if err != nil {
			return err
		}
		params.Activities = shares
	case kindClaims:
		records, err := domain.ParseLossHistory(value)
		if err != nil {
			return err
		}
		params.PriorClaims = records
	case kindPeriodicity:
		s, err := utils.ParseString(value)
		if err != nil {
			return err
		}
		periodicity, err := domain.ParsePeriodicity(s)
		if err != nil {
			return err
		}
		params.Periodicity = periodicity
	case kindDate:
		d, err := utils.ParseDate(value)
		if err != nil {
			return err
		}
		params.EffectiveDate = &d
	default:
		return fmt.Errorf("unsupported parameter %s", p.name)
	}
	return nil
}

func setDecimal(params *domain.Parameters, name string, d decimal.Decimal) {
	switch name {
	case domain.ParamCADeclared:
		params.CADeclared = d
	case domain.ParamManagementFeeRate:
		params.ManagementFeeRate = d
	case domain.ParamLegalProtectionAmount:
		params.LegalProtectionAmount = d
	case domain.ParamInsuranceTaxRate:
		params.InsuranceTaxRate = d
	case domain.ParamInstallmentFee:
		params.InstallmentFee = d
	}
}

func setInt(params *domain.Parameters, name string, n int) {
	switch name {
	case domain.ParamHeadcount:
		params.Headcount = n
	case domain.ParamExperienceYears:
		params.ExperienceYears = n
	case domain.ParamContinuousInsuranceYears:
		params.ContinuousInsuranceYears = n
	case domain.ParamRepriseYears:
		params.RepriseYears = n
	}
}

func setBool(params *domain.Parameters, name string, b bool) {
	switch name {
	case domain.ParamQualification:
		params.Qualification = b
	case domain.ParamDefaultingInsurer:
		params.DefaultingInsurer = b
	case domain.ParamNoBalanceSheet:
		params.NoBalanceSheet = b
	case domain.ParamInactivityPeriod:
		params.InactivityPeriod = b
	}
}

// MergeOverrides applies overrides keyed by canonical parameter name onto a
// copy of formData, each written under the form field the product maps it to.
// formData itself is never modified.
func MergeOverrides(formData domain.FormData, mapping domain.MappingFields, overrides map[string]interface{}) (domain.FormData, error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var violations []customError.FieldViolation
	merged := formData.Clone()
	for _, name := range names {
		if !IsCanonical(name) {
			violations = append(violations, customError.FieldViolation{
				Field: name, Code: "unknown_parameter", Message: "is not a calculation parameter",
			})
			continue
		}
		key, _ := mapping.FieldFor(name)
		merged[key] = normalize(overrides[name])
	}

	if err := customError.NewValidationError(violations); err != nil {
		return nil, err
	}
	return merged, nil
}

// normalize keeps override values in the shapes form data carries.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format(utils.DateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(utils.DateLayout)
	default:
		return v
	}
}
