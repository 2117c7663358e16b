package handler

import (
	"errors"
	"net/http"

	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/response"

	"go.uber.org/zap"
)

var notFound = []error{
	customError.ErrQuoteNotFound,
	customError.ErrProductNotFound,
	customError.ErrInstallmentNotFound,
	customError.ErrCalculationNotFound,
	customError.ErrActivityNotFound,
}

var conflicts = []error{
	customError.ErrQuoteLocked,
	customError.ErrLastInstallment,
	customError.ErrInstallmentOutOfOrder,
	customError.ErrInstallmentNotEmitted,
	customError.ErrInstallmentEmitted,
	customError.ErrInstallmentSettled,
	customError.ErrScheduleLocked,
	customError.ErrConcurrentModification,
	customError.ErrCalculationRefused,
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	if errors.Is(err, customError.ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err with its business code and, for validation and
// configuration errors, the offending fields.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	code := customError.CodeOf(err)
	message := err.Error()

	var be *customError.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}

	var details interface{}
	var validationErr *customError.ValidationError
	var configErr *customError.ConfigurationError
	switch {
	case errors.As(err, &validationErr):
		details = validationErr.Violations
		if code == "" {
			code = customError.ErrCodeValidation
		}
	case errors.As(err, &configErr):
		details = configErr.Parameters
		if code == "" {
			code = customError.ErrCodeConfiguration
		}
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
		if code == customError.ErrCodeDatabaseError || code == "" {
			response.ErrorWithDetails(w, status, code, "internal error", nil, details)
			return
		}
	}
	response.ErrorWithDetails(w, status, code, message, err, details)
}
