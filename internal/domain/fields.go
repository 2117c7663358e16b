package domain

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// FieldKind discriminates the variants of a product form field.
type FieldKind string

const (
	FieldText              FieldKind = "text"
	FieldNumber            FieldKind = "number"
	FieldDate              FieldKind = "date"
	FieldSelect            FieldKind = "select"
	FieldCheckbox          FieldKind = "checkbox"
	FieldActivityBreakdown FieldKind = "activity_breakdown"
	FieldLossHistory       FieldKind = "loss_history"
)

// Violation codes reported by field validators.
const (
	ViolationRequired      = "required"
	ViolationInvalidType   = "invalid_type"
	ViolationMin           = "min"
	ViolationMax           = "max"
	ViolationStep          = "step"
	ViolationPattern       = "pattern"
	ViolationOption        = "invalid_option"
	ViolationShareSum      = "share_sum"
	ViolationConcentration = "concentration"
	ViolationDuplicate     = "duplicate"
	ViolationUnknownCode   = "unknown_code"
	ViolationTooMany       = "too_many"
)

// FieldSpec is one declared input of a product form.
type FieldSpec interface {
	Kind() FieldKind
	Meta() FieldMeta
	// Validate checks a non-empty value against the declared constraints.
	Validate(name string, value interface{}) []customError.FieldViolation
}

// FieldMeta holds the attributes shared by every field kind.
type FieldMeta struct {
	Type     FieldKind `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
}

func (m FieldMeta) Meta() FieldMeta { return m }

func violation(field, code, format string, args ...interface{}) customError.FieldViolation {
	return customError.FieldViolation{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidType(field string, err error) []customError.FieldViolation {
	return []customError.FieldViolation{violation(field, ViolationInvalidType, "%v", err)}
}

// IsEmpty reports whether a form value counts as not answered.
func IsEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

type TextField struct {
	FieldMeta
	MinLength int    `json:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

func (TextField) Kind() FieldKind { return FieldText }

func (f TextField) Validate(name string, value interface{}) []customError.FieldViolation {
	s, err := utils.ParseString(value)
	if err != nil {
		return invalidType(name, err)
	}

	var out []customError.FieldViolation
	length := utf8.RuneCountInString(s)
	if f.MinLength > 0 && length < f.MinLength {
		out = append(out, violation(name, ViolationMin, "must be at least %d characters", f.MinLength))
	}
	if f.MaxLength > 0 && length > f.MaxLength {
		out = append(out, violation(name, ViolationMax, "must be at most %d characters", f.MaxLength))
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			out = append(out, violation(name, ViolationPattern, "pattern %q is invalid", f.Pattern))
		} else if !re.MatchString(s) {
			out = append(out, violation(name, ViolationPattern, "does not match the expected format"))
		}
	}
	return out
}

func (f TextField) MarshalJSON() ([]byte, error) {
	type alias TextField
	f.Type = FieldText
	return json.Marshal(alias(f))
}

type NumberField struct {
	FieldMeta
	Min  *decimal.Decimal `json:"min,omitempty"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Step *decimal.Decimal `json:"step,omitempty"`
}

func (NumberField) Kind() FieldKind { return FieldNumber }

func (f NumberField) Validate(name string, value interface{}) []customError.FieldViolation {
	d, err := utils.ParseDecimal(value)
	if err != nil {
		return invalidType(name, err)
	}

	var out []customError.FieldViolation
	if f.Min != nil && d.LessThan(*f.Min) {
		out = append(out, violation(name, ViolationMin, "must be greater than or equal to %s", f.Min.String()))
	}
	if f.Max != nil && d.GreaterThan(*f.Max) {
		out = append(out, violation(name, ViolationMax, "must be less than or equal to %s", f.Max.String()))
	}
	if f.Step != nil && f.Step.IsPositive() {
		base := decimal.Zero
		if f.Min != nil {
			base = *f.Min
		}
		if !d.Sub(base).Mod(*f.Step).IsZero() {
			out = append(out, violation(name, ViolationStep, "must be a multiple of %s", f.Step.String()))
		}
	}
	return out
}

func (f NumberField) MarshalJSON() ([]byte, error) {
	type alias NumberField
	f.Type = FieldNumber
	return json.Marshal(alias(f))
}

type DateField struct {
	FieldMeta
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

func (DateField) Kind() FieldKind { return FieldDate }

func (f DateField) Validate(name string, value interface{}) []customError.FieldViolation {
	d, err := utils.ParseDate(value)
	if err != nil {
		return invalidType(name, err)
	}

	var out []customError.FieldViolation
	if f.Min != "" {
		if min, err := utils.ParseDate(f.Min); err == nil && d.Before(min) {
			out = append(out, violation(name, ViolationMin, "must be on or after %s", f.Min))
		}
	}
	if f.Max != "" {
		if max, err := utils.ParseDate(f.Max); err == nil && d.After(max) {
			out = append(out, violation(name, ViolationMax, "must be on or before %s", f.Max))
		}
	}
	return out
}

func (f DateField) MarshalJSON() ([]byte, error) {
	type alias DateField
	f.Type = FieldDate
	return json.Marshal(alias(f))
}

// Option is a select choice. It decodes from a bare string or a {value, label} object.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Value, o.Label = s, s
		return nil
	}
	type alias Option
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("option must be a string or an object: %w", err)
	}
	*o = Option(a)
	return nil
}

type SelectField struct {
	FieldMeta
	Options []Option `json:"options"`
}

func (SelectField) Kind() FieldKind { return FieldSelect }

func (f SelectField) Validate(name string, value interface{}) []customError.FieldViolation {
	s, err := utils.ParseString(value)
	if err != nil {
		return invalidType(name, err)
	}
	for _, o := range f.Options {
		if o.Value == s {
			return nil
		}
	}
	return []customError.FieldViolation{violation(name, ViolationOption, "%q is not one of the allowed options", s)}
}

// Contains reports whether value is one of the declared options.
func (f SelectField) Contains(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (f SelectField) MarshalJSON() ([]byte, error) {
	type alias SelectField
	f.Type = FieldSelect
	return json.Marshal(alias(f))
}

type CheckboxField struct {
	FieldMeta
}

func (CheckboxField) Kind() FieldKind { return FieldCheckbox }

func (f CheckboxField) Validate(name string, value interface{}) []customError.FieldViolation {
	if _, err := utils.ParseBool(value); err != nil {
		return invalidType(name, err)
	}
	return nil
}

func (f CheckboxField) MarshalJSON() ([]byte, error) {
	type alias CheckboxField
	f.Type = FieldCheckbox
	return json.Marshal(alias(f))
}

// ActivityBreakdownField declares the turnover split across activity codes.
// Codes up to MainCodeMax are main activities; when a breakdown mixes main and
// other codes, main codes together must carry at least MinMainSharePercent.
type ActivityBreakdownField struct {
	FieldMeta
	MainCodeMax         int              `json:"mainCodeMax,omitempty"`
	MinMainSharePercent *decimal.Decimal `json:"minMainSharePercent,omitempty"`
	MaxActivities       int              `json:"maxActivities,omitempty"`
}

func (ActivityBreakdownField) Kind() FieldKind { return FieldActivityBreakdown }

func (f ActivityBreakdownField) Validate(name string, value interface{}) []customError.FieldViolation {
	shares, err := ParseActivities(value)
	if err != nil {
		return invalidType(name, err)
	}
	return f.Check(name, shares)
}

// Check validates already decoded shares.
func (f ActivityBreakdownField) Check(name string, shares []ActivityShare) []customError.FieldViolation {
	var out []customError.FieldViolation

	if f.MaxActivities > 0 && len(shares) > f.MaxActivities {
		out = append(out, violation(name, ViolationTooMany, "at most %d activities may be declared", f.MaxActivities))
	}

	seen := make(map[string]struct{}, len(shares))
	total := decimal.Zero
	mainShare := decimal.Zero
	hasMain, hasOther := false, false
	for _, s := range shares {
		if _, dup := seen[s.Code]; dup {
			out = append(out, violation(name, ViolationDuplicate, "activity %s is declared twice", s.Code))
		}
		seen[s.Code] = struct{}{}

		if !s.CASharePercent.IsPositive() {
			out = append(out, violation(name, ViolationMin, "share of activity %s must be positive", s.Code))
		}
		total = total.Add(s.CASharePercent)

		if f.MainCodeMax > 0 {
			if n, ok := s.CodeNumber(); ok && n <= f.MainCodeMax {
				hasMain = true
				mainShare = mainShare.Add(s.CASharePercent)
			} else {
				hasOther = true
			}
		}
	}

	if !total.Equal(decimal.NewFromInt(100)) {
		out = append(out, violation(name, ViolationShareSum, "activity shares must sum to 100, got %s", total.String()))
	}

	if f.MinMainSharePercent != nil && hasMain && hasOther && mainShare.LessThan(*f.MinMainSharePercent) {
		out = append(out, violation(name, ViolationConcentration,
			"main activities (codes up to %d) must represent at least %s%% of turnover, got %s%%",
			f.MainCodeMax, f.MinMainSharePercent.String(), mainShare.String()))
	}
	return out
}

func (f ActivityBreakdownField) MarshalJSON() ([]byte, error) {
	type alias ActivityBreakdownField
	f.Type = FieldActivityBreakdown
	return json.Marshal(alias(f))
}

// LossHistoryField declares prior claims per year.
type LossHistoryField struct {
	FieldMeta
	MaxYears int `json:"maxYears,omitempty"`
}

func (LossHistoryField) Kind() FieldKind { return FieldLossHistory }

func (f LossHistoryField) Validate(name string, value interface{}) []customError.FieldViolation {
	records, err := ParseLossHistory(value)
	if err != nil {
		return invalidType(name, err)
	}

	var out []customError.FieldViolation
	if f.MaxYears > 0 && len(records) > f.MaxYears {
		out = append(out, violation(name, ViolationTooMany, "at most %d years of history may be declared", f.MaxYears))
	}
	years := make(map[int]struct{}, len(records))
	for _, r := range records {
		if _, dup := years[r.Year]; dup {
			out = append(out, violation(name, ViolationDuplicate, "year %d is declared twice", r.Year))
		}
		years[r.Year] = struct{}{}
		if r.Count < 0 {
			out = append(out, violation(name, ViolationMin, "claim count for %d cannot be negative", r.Year))
		}
		if r.Amount.IsNegative() {
			out = append(out, violation(name, ViolationMin, "claim amount for %d cannot be negative", r.Year))
		}
	}
	return out
}

func (f LossHistoryField) MarshalJSON() ([]byte, error) {
	type alias LossHistoryField
	f.Type = FieldLossHistory
	return json.Marshal(alias(f))
}

// FormFields is the declared input schema of a product, keyed by form field name.
type FormFields map[string]FieldSpec

// Names returns the field names in a stable order.
func (ff FormFields) Names() []string {
	names := make([]string, 0, len(ff))
	for name := range ff {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ff *FormFields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(FormFields, len(raw))
	for name, msg := range raw {
		spec, err := decodeField(msg)
		if err != nil {
			return fmt.Errorf("form field %q: %w", name, err)
		}
		out[name] = spec
	}
	*ff = out
	return nil
}

func decodeField(msg json.RawMessage) (FieldSpec, error) {
	var head struct {
		Type FieldKind `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return nil, err
	}

	var spec FieldSpec
	var err error
	switch head.Type {
	case FieldText:
		var f TextField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldNumber:
		var f NumberField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldDate:
		var f DateField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldSelect:
		var f SelectField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldCheckbox:
		var f CheckboxField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldActivityBreakdown:
		var f ActivityBreakdownField
		err = json.Unmarshal(msg, &f)
		spec = f
	case FieldLossHistory:
		var f LossHistoryField
		err = json.Unmarshal(msg, &f)
		spec = f
	default:
		return nil, fmt.Errorf("unknown field type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseActivities decodes an activity breakdown from form data. It accepts a
// list of {code, caSharePercent} objects or a map of code to percentage.
func ParseActivities(value interface{}) ([]ActivityShare, error) {
	switch v := value.(type) {
	case []ActivityShare:
		return v, nil
	case []interface{}:
		out := make([]ActivityShare, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("activity #%d must be an object", i+1)
			}
			code, err := utils.ParseString(m["code"])
			if err != nil || strings.TrimSpace(code) == "" {
				return nil, fmt.Errorf("activity #%d has no code", i+1)
			}
			share, err := utils.ParseDecimal(m["caSharePercent"])
			if err != nil {
				return nil, fmt.Errorf("activity %s: invalid share: %w", code, err)
			}
			out = append(out, ActivityShare{Code: strings.TrimSpace(code), CASharePercent: share})
		}
		return out, nil
	case map[string]interface{}:
		codes := make([]string, 0, len(v))
		for code := range v {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		out := make([]ActivityShare, 0, len(v))
		for _, code := range codes {
			share, err := utils.ParseDecimal(v[code])
			if err != nil {
				return nil, fmt.Errorf("activity %s: invalid share: %w", code, err)
			}
			out = append(out, ActivityShare{Code: code, CASharePercent: share})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported activity breakdown type %T", value)
	}
}

// ParseLossHistory decodes a list of {year, count, amount} objects.
func ParseLossHistory(value interface{}) ([]LossRecord, error) {
	switch v := value.(type) {
	case []LossRecord:
		return v, nil
	case []interface{}:
		out := make([]LossRecord, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("claims record #%d must be an object", i+1)
			}
			year, err := utils.ParseInt(m["year"])
			if err != nil {
				return nil, fmt.Errorf("claims record #%d: invalid year: %w", i+1, err)
			}
			count := 0
			if m["count"] != nil {
				if count, err = utils.ParseInt(m["count"]); err != nil {
					return nil, fmt.Errorf("claims record %d: invalid count: %w", year, err)
				}
			}
			amount := decimal.Zero
			if m["amount"] != nil {
				if amount, err = utils.ParseDecimal(m["amount"]); err != nil {
					return nil, fmt.Errorf("claims record %d: invalid amount: %w", year, err)
				}
			}
			out = append(out, LossRecord{Year: year, Count: count, Amount: amount})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported claims history type %T", value)
	}
}
