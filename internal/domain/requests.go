package domain

import (
	"time"

	"github.com/google/uuid"
)

// DTOs for requests and responses

type RecalculateRequest struct {
	Overrides map[string]interface{} `json:"overrides" validate:"required,min=1"`
}

type GenerateScheduleRequest struct {
	Periodicity   string `json:"periodicite" validate:"omitempty,periodicity"`
	EffectiveDate string `json:"dateEffet" validate:"omitempty,datetime=2006-01-02"`
}

// Overrides turns the request into canonical parameter overrides.
func (r GenerateScheduleRequest) Overrides() map[string]interface{} {
	overrides := make(map[string]interface{}, 2)
	if r.Periodicity != "" {
		overrides[ParamPeriodicity] = r.Periodicity
	}
	if r.EffectiveDate != "" {
		overrides[ParamEffectiveDate] = r.EffectiveDate
	}
	return overrides
}

type PatchInstallmentsRequest struct {
	Edits []InstallmentEdit `json:"edits" validate:"required,min=1,dive"`
}

type DeleteInstallmentsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

type EmitInstallmentRequest struct {
	EmissionDate *time.Time `json:"emissionDate,omitempty"`
}

type RecordPaymentRequest struct {
	PaymentMethod string     `json:"paymentMethod" validate:"required,max=64"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

type ScheduleResponse struct {
	QuoteID      uuid.UUID             `json:"quoteId"`
	Installments []*PaymentInstallment `json:"installments"`
	Totals       ScheduleTotals        `json:"totals"`
}

type PremiumCallResponse struct {
	QuoteID     uuid.UUID           `json:"quoteId"`
	Installment *PaymentInstallment `json:"installment"`
	Result      *CalculationResult  `json:"result"`
}

type OverdueResponse struct {
	Marked int64     `json:"marked"`
	AsOf   time.Time `json:"asOf"`
}
