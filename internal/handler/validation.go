package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// newValidator returns a validator that reports JSON field names and knows
// the money and periodicity tags.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimals are validated through their text form
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("periodicity", validatePeriodicity)
	return v
}

// validateMoney accepts non-negative amounts with at most two decimals.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Equal(d.Round(2))
}

func validatePeriodicity(fl validator.FieldLevel) bool {
	_, err := domain.ParsePeriodicity(fl.Field().String())
	return err == nil
}

// violations converts validator errors into the field violations the API reports.
func violations(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := make([]customError.FieldViolation, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, customError.FieldViolation{
			Field:   strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+"."),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return customError.WrapValidation(customError.NewValidationError(out))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "money":
		return "must be a non-negative amount with at most two decimals"
	case "periodicity":
		return "must be annuel, semestriel, trimestriel or mensuel"
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %s check", fe.Tag())
	}
}
