package schedule

import (
	"strings"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	"github.com/google/uuid"
)

// NextUnvalidated returns the lowest numbered installment still awaiting
// emission, or nil when every installment was emitted or settled.
func NextUnvalidated(installments []*domain.PaymentInstallment) *domain.PaymentInstallment {
	var next *domain.PaymentInstallment
	for _, i := range installments {
		if !i.AwaitingEmission() {
			continue
		}
		if next == nil || i.InstallmentNumber < next.InstallmentNumber {
			next = i
		}
	}
	return next
}

// Emit marks the premium call of installment id as sent on emissionDate.
// Only the next unvalidated installment may be emitted.
func Emit(installments []*domain.PaymentInstallment, id uuid.UUID, emissionDate time.Time) (*domain.PaymentInstallment, error) {
	inst, err := Find(installments, id)
	if err != nil {
		return nil, err
	}
	if inst.Status.IsSettled() {
		return nil, customError.WrapInstallmentSettled(inst.InstallmentNumber, string(inst.Status))
	}
	if inst.IsEmitted() {
		return nil, customError.WrapInstallmentEmitted(inst.InstallmentNumber)
	}
	if next := NextUnvalidated(installments); next == nil || next.ID != inst.ID {
		expected := 0
		if next != nil {
			expected = next.InstallmentNumber
		}
		return nil, customError.WrapInstallmentOutOfOrder(inst.InstallmentNumber, expected)
	}

	at := emissionDate
	inst.EmissionDate = &at
	inst.UpdatedAt = emissionDate
	return inst, nil
}

// Pay records the payment of an emitted installment.
func Pay(inst *domain.PaymentInstallment, method string, paidAt time.Time) error {
	method = strings.TrimSpace(method)
	if inst.Status.IsSettled() {
		return customError.WrapInstallmentSettled(inst.InstallmentNumber, string(inst.Status))
	}
	if !inst.IsEmitted() {
		return customError.WrapInstallmentNotEmitted(inst.InstallmentNumber)
	}
	if method == "" {
		return customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
			Field: "paymentMethod", Code: domain.ViolationRequired, Message: "is required",
		}}))
	}

	at := paidAt
	inst.PaidAt = &at
	inst.PaymentMethod = &method
	inst.Status = domain.InstallmentStatusPaid
	inst.UpdatedAt = paidAt
	return nil
}

// Cancel terminates an installment that was not paid.
func Cancel(inst *domain.PaymentInstallment, now time.Time) error {
	if inst.Status.IsSettled() {
		return customError.WrapInstallmentSettled(inst.InstallmentNumber, string(inst.Status))
	}
	inst.Status = domain.InstallmentStatusCancelled
	inst.UpdatedAt = now
	return nil
}

// MarkOverdue flags emitted, unpaid installments whose due day has passed.
// It returns the installments it changed.
func MarkOverdue(installments []*domain.PaymentInstallment, now time.Time) []*domain.PaymentInstallment {
	var changed []*domain.PaymentInstallment
	for _, i := range installments {
		if i.Status != domain.InstallmentStatusPending || !i.IsEmitted() {
			continue
		}
		if utils.IsDateOverdue(i.DueDate, now) {
			i.Status = domain.InstallmentStatusOverdue
			i.UpdatedAt = now
			changed = append(changed, i)
		}
	}
	return changed
}
