package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrQuoteNotFound          = errors.New("quote not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrInstallmentNotFound    = errors.New("installment not found")
	ErrQuoteLocked            = errors.New("quote can no longer be modified")
	ErrValidation             = errors.New("validation failed")
	ErrConfiguration          = errors.New("product configuration error")
	ErrLastInstallment        = errors.New("at least one installment must remain")
	ErrInstallmentOutOfOrder  = errors.New("installment is not the next one to validate")
	ErrInstallmentNotEmitted  = errors.New("installment has not been emitted")
	ErrInstallmentEmitted     = errors.New("installment has already been emitted")
	ErrInstallmentSettled     = errors.New("installment is already paid or cancelled")
	ErrScheduleLocked         = errors.New("schedule has emitted or paid installments")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrCalculationRefused     = errors.New("calculation refused")
	ErrCalculationNotFound    = errors.New("calculation not found")
	ErrActivityNotFound       = errors.New("activity code not found")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeQuoteNotFound          = "QUOTE_NOT_FOUND"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeInstallmentNotFound    = "INSTALLMENT_NOT_FOUND"
	ErrCodeQuoteLocked            = "QUOTE_LOCKED"
	ErrCodeValidation             = "VALIDATION_FAILED"
	ErrCodeConfiguration          = "CONFIGURATION_ERROR"
	ErrCodeLastInstallment        = "LAST_INSTALLMENT"
	ErrCodeInstallmentOutOfOrder  = "INSTALLMENT_OUT_OF_ORDER"
	ErrCodeInstallmentNotEmitted  = "INSTALLMENT_NOT_EMITTED"
	ErrCodeInstallmentEmitted     = "INSTALLMENT_ALREADY_EMITTED"
	ErrCodeInstallmentSettled     = "INSTALLMENT_ALREADY_SETTLED"
	ErrCodeScheduleLocked         = "SCHEDULE_LOCKED"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeCalculationRefused     = "CALCULATION_REFUSED"
	ErrCodeCalculationNotFound    = "CALCULATION_NOT_FOUND"
	ErrCodeActivityNotFound       = "ACTIVITY_NOT_FOUND"
	ErrCodeDatabaseError          = "DATABASE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
)

// FieldViolation describes one rejected form value or parameter.
type FieldViolation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError carries every violation found, not only the first one.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Fields returns the distinct field names that have at least one violation.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Violations))
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if _, ok := seen[v.Field]; ok {
			continue
		}
		seen[v.Field] = struct{}{}
		fields = append(fields, v.Field)
	}
	sort.Strings(fields)
	return fields
}

// HasField reports whether field has at least one violation.
func (e *ValidationError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// NewValidationError returns nil when there is nothing to report.
func NewValidationError(violations []FieldViolation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// ConfigurationError lists canonical parameters that have neither a mapping entry nor a default.
type ConfigurationError struct {
	ProductID  string
	Parameters []string
}

func (e *ConfigurationError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("product %s: unresolvable parameters: %s", e.ProductID, strings.Join(e.Parameters, ", "))
	}
	return fmt.Sprintf("unresolvable parameters: %s", strings.Join(e.Parameters, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Wrap common errors with business context
func WrapQuoteNotFound(quoteID string) *BusinessError {
	return NewBusinessError(
		ErrCodeQuoteNotFound,
		fmt.Sprintf("Quote with ID %s not found", quoteID),
		ErrQuoteNotFound,
	)
}

func WrapProductNotFound(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProductNotFound,
		fmt.Sprintf("Product with ID %s not found", productID),
		ErrProductNotFound,
	)
}

func WrapInstallmentNotFound(installmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment with ID %s not found", installmentID),
		ErrInstallmentNotFound,
	)
}

func WrapQuoteLocked(quoteID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeQuoteLocked,
		fmt.Sprintf("Quote %s is %s and can no longer be modified", quoteID, status),
		ErrQuoteLocked,
	)
}

func WrapValidation(err error) *BusinessError {
	return NewBusinessError(ErrCodeValidation, "invalid form values", err)
}

func WrapConfiguration(err error) *BusinessError {
	return NewBusinessError(ErrCodeConfiguration, "product configuration is incomplete", err)
}

func WrapLastInstallment(quoteID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLastInstallment,
		fmt.Sprintf("Schedule of quote %s must keep at least one installment", quoteID),
		ErrLastInstallment,
	)
}

func WrapInstallmentOutOfOrder(requested, next int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentOutOfOrder,
		fmt.Sprintf("Installment %d cannot be validated before installment %d", requested, next),
		ErrInstallmentOutOfOrder,
	)
}

func WrapInstallmentNotEmitted(number int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotEmitted,
		fmt.Sprintf("Installment %d must be emitted before a payment is recorded", number),
		ErrInstallmentNotEmitted,
	)
}

func WrapInstallmentEmitted(number int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentEmitted,
		fmt.Sprintf("Installment %d has already been emitted", number),
		ErrInstallmentEmitted,
	)
}

func WrapInstallmentSettled(number int, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentSettled,
		fmt.Sprintf("Installment %d is %s", number, status),
		ErrInstallmentSettled,
	)
}

func WrapScheduleLocked(quoteID string) *BusinessError {
	return NewBusinessError(
		ErrCodeScheduleLocked,
		fmt.Sprintf("Schedule of quote %s has emitted or paid installments and cannot be regenerated", quoteID),
		ErrScheduleLocked,
	)
}

func WrapConcurrentModification(installmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("Installment %s was modified concurrently", installmentID),
		ErrConcurrentModification,
	)
}

func WrapCalculationRefused(reason string) *BusinessError {
	return NewBusinessError(ErrCodeCalculationRefused, reason, ErrCalculationRefused)
}

func WrapCalculationNotFound(quoteID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCalculationNotFound,
		fmt.Sprintf("No calculation was saved for quote %s", quoteID),
		ErrCalculationNotFound,
	)
}

func WrapActivityNotFound(code string) *BusinessError {
	return NewBusinessError(
		ErrCodeActivityNotFound,
		fmt.Sprintf("Activity code %s is not in the tariff nomenclature", code),
		ErrActivityNotFound,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// CodeOf returns the business code carried by err, or "" when err is not a BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
