package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/google/uuid"
)

// Find returns the installment with the given id.
func Find(installments []*domain.PaymentInstallment, id uuid.UUID) (*domain.PaymentInstallment, error) {
	for _, i := range installments {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, customError.WrapInstallmentNotFound(id.String())
}

// ApplyPatch overwrites the fields a patch sets. Paid or cancelled
// installments are frozen. The installment is left untouched on error.
func ApplyPatch(inst *domain.PaymentInstallment, patch domain.InstallmentPatch, now time.Time) error {
	patched, err := patchedCopy(inst, patch)
	if err != nil {
		return err
	}
	patched.UpdatedAt = now
	*inst = patched
	return nil
}

func patchedCopy(inst *domain.PaymentInstallment, patch domain.InstallmentPatch) (domain.PaymentInstallment, error) {
	if inst.Status.IsSettled() {
		return domain.PaymentInstallment{}, customError.WrapInstallmentSettled(inst.InstallmentNumber, string(inst.Status))
	}

	p := *inst
	if patch.DueDate != nil {
		p.DueDate = *patch.DueDate
	}
	if patch.PeriodStart != nil {
		p.PeriodStart = *patch.PeriodStart
	}
	if patch.PeriodEnd != nil {
		p.PeriodEnd = *patch.PeriodEnd
	}
	if patch.AmountHT != nil {
		p.AmountHT = *patch.AmountHT
	}
	if patch.TaxAmount != nil {
		p.TaxAmount = *patch.TaxAmount
	}
	if patch.AmountTTC != nil {
		p.AmountTTC = *patch.AmountTTC
	}
	if patch.RCDAmount != nil {
		p.RCDAmount = *patch.RCDAmount
	}
	if patch.PJAmount != nil {
		p.PJAmount = *patch.PJAmount
	}
	if patch.FeesAmount != nil {
		p.FeesAmount = *patch.FeesAmount
	}
	if patch.ResumeAmount != nil {
		p.ResumeAmount = *patch.ResumeAmount
	}

	if err := checkPeriod(p.PeriodStart, p.PeriodEnd); err != nil {
		return domain.PaymentInstallment{}, err
	}
	return p, nil
}

// ApplyBulkPatch applies several edits at once. Every edit is checked before
// any installment changes, so the schedule is either fully edited or not at
// all. It returns the edited installments.
func ApplyBulkPatch(installments []*domain.PaymentInstallment, edits []domain.InstallmentEdit, now time.Time) ([]*domain.PaymentInstallment, error) {
	targets := make([]*domain.PaymentInstallment, 0, len(edits))
	patched := make([]domain.PaymentInstallment, 0, len(edits))
	seen := make(map[uuid.UUID]bool, len(edits))

	for _, edit := range edits {
		if seen[edit.ID] {
			return nil, customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
				Field: "edits", Code: domain.ViolationDuplicate, Message: fmt.Sprintf("installment %s is edited twice", edit.ID),
			}}))
		}
		seen[edit.ID] = true

		inst, err := Find(installments, edit.ID)
		if err != nil {
			return nil, err
		}
		p, err := patchedCopy(inst, edit.Patch)
		if err != nil {
			return nil, err
		}
		targets = append(targets, inst)
		patched = append(patched, p)
	}

	for i, inst := range targets {
		patched[i].UpdatedAt = now
		*inst = patched[i]
	}
	return targets, nil
}

// AddInstallment inserts a manually defined installment and renumbers the
// schedule chronologically. An installment may not be slotted before one
// that was already emitted, since emission follows installment order.
func AddInstallment(installments []*domain.PaymentInstallment, quoteID uuid.UUID, values domain.NewInstallment, now time.Time) ([]*domain.PaymentInstallment, *domain.PaymentInstallment, error) {
	if err := checkPeriod(values.PeriodStart, values.PeriodEnd); err != nil {
		return nil, nil, err
	}
	for _, i := range installments {
		if i.IsEmitted() && !values.PeriodStart.After(i.PeriodStart) {
			return nil, nil, customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
				Field: "periodStart", Code: domain.ViolationMin,
				Message: fmt.Sprintf("must start after emitted installment %d", i.InstallmentNumber),
			}}))
		}
	}

	added := &domain.PaymentInstallment{
		ID:           uuid.New(),
		QuoteID:      quoteID,
		DueDate:      values.DueDate,
		PeriodStart:  values.PeriodStart,
		PeriodEnd:    values.PeriodEnd,
		AmountHT:     values.AmountHT,
		TaxAmount:    values.TaxAmount,
		AmountTTC:    values.AmountTTC,
		RCDAmount:    values.RCDAmount,
		PJAmount:     values.PJAmount,
		FeesAmount:   values.FeesAmount,
		ResumeAmount: values.ResumeAmount,
		Status:       domain.InstallmentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	all := make([]*domain.PaymentInstallment, 0, len(installments)+1)
	all = append(all, installments...)
	all = append(all, added)
	Renumber(all, now)
	return all, added, nil
}

// RemoveInstallments deletes installments by id and renumbers what remains.
// Emitted or paid installments cannot be removed and a schedule never
// becomes empty.
func RemoveInstallments(installments []*domain.PaymentInstallment, ids []uuid.UUID, now time.Time) (remaining, removed []*domain.PaymentInstallment, err error) {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		inst, err := Find(installments, id)
		if err != nil {
			return nil, nil, err
		}
		if inst.IsEmitted() {
			return nil, nil, customError.WrapInstallmentEmitted(inst.InstallmentNumber)
		}
		if inst.Status == domain.InstallmentStatusPaid {
			return nil, nil, customError.WrapInstallmentSettled(inst.InstallmentNumber, string(inst.Status))
		}
		drop[id] = true
	}

	for _, i := range installments {
		if drop[i.ID] {
			removed = append(removed, i)
		} else {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) == 0 {
		quoteID := ""
		if len(installments) > 0 {
			quoteID = installments[0].QuoteID.String()
		}
		return nil, nil, customError.WrapLastInstallment(quoteID)
	}

	Renumber(remaining, now)
	return remaining, removed, nil
}

// Renumber sorts installments by period start then due date and numbers them
// from 1. Installments whose number changes get UpdatedAt set to now.
func Renumber(installments []*domain.PaymentInstallment, now time.Time) {
	sort.SliceStable(installments, func(a, b int) bool {
		x, y := installments[a], installments[b]
		if !x.PeriodStart.Equal(y.PeriodStart) {
			return x.PeriodStart.Before(y.PeriodStart)
		}
		if !x.DueDate.Equal(y.DueDate) {
			return x.DueDate.Before(y.DueDate)
		}
		return x.InstallmentNumber < y.InstallmentNumber
	})
	for n, inst := range installments {
		if inst.InstallmentNumber != n+1 {
			inst.InstallmentNumber = n + 1
			inst.UpdatedAt = now
		}
	}
}

func checkPeriod(start, end time.Time) error {
	if end.Before(start) {
		return customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
			Field: "periodEnd", Code: domain.ViolationMin, Message: "must not precede periodStart",
		}}))
	}
	return nil
}
