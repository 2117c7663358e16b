package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentStatusPending   InstallmentStatus = "PENDING"
	InstallmentStatusOverdue   InstallmentStatus = "OVERDUE"
	InstallmentStatusPaid      InstallmentStatus = "PAID"
	InstallmentStatusCancelled InstallmentStatus = "CANCELLED"
)

// IsSettled reports a terminal status.
func (s InstallmentStatus) IsSettled() bool {
	return s == InstallmentStatusPaid || s == InstallmentStatusCancelled
}

// PaymentInstallment is a persisted installment of a quote's schedule.
type PaymentInstallment struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	QuoteID           uuid.UUID         `json:"quoteId" db:"quote_id"`
	InstallmentNumber int               `json:"installmentNumber" db:"installment_number"`
	DueDate           time.Time         `json:"dueDate" db:"due_date"`
	PeriodStart       time.Time         `json:"periodStart" db:"period_start"`
	PeriodEnd         time.Time         `json:"periodEnd" db:"period_end"`
	AmountHT          decimal.Decimal   `json:"amountHT" db:"amount_ht"`
	TaxAmount         decimal.Decimal   `json:"taxAmount" db:"tax_amount"`
	AmountTTC         decimal.Decimal   `json:"amountTTC" db:"amount_ttc"`
	RCDAmount         decimal.Decimal   `json:"rcdAmount" db:"rcd_amount"`
	PJAmount          decimal.Decimal   `json:"pjAmount" db:"pj_amount"`
	FeesAmount        decimal.Decimal   `json:"feesAmount" db:"fees_amount"`
	ResumeAmount      decimal.Decimal   `json:"resumeAmount" db:"resume_amount"`
	Status            InstallmentStatus `json:"status" db:"status"`
	PaidAt            *time.Time        `json:"paidAt,omitempty" db:"paid_at"`
	EmissionDate      *time.Time        `json:"emissionDate,omitempty" db:"emission_date"`
	PaymentMethod     *string           `json:"paymentMethod,omitempty" db:"payment_method"`
	CreatedAt         time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time         `json:"updatedAt" db:"updated_at"`
}

// IsEmitted reports whether a premium call went out for the installment.
func (i *PaymentInstallment) IsEmitted() bool {
	return i.EmissionDate != nil
}

// AwaitingEmission reports whether the installment can still be emitted.
func (i *PaymentInstallment) AwaitingEmission() bool {
	return i.EmissionDate == nil && !i.Status.IsSettled()
}

// AwaitingPayment reports whether a payment can be recorded against the installment.
func (i *PaymentInstallment) AwaitingPayment() bool {
	return i.EmissionDate != nil && !i.Status.IsSettled()
}

// InstallmentPatch is a sparse edit of one installment. Nil fields are left unchanged.
type InstallmentPatch struct {
	DueDate      *time.Time       `json:"dueDate,omitempty"`
	PeriodStart  *time.Time       `json:"periodStart,omitempty"`
	PeriodEnd    *time.Time       `json:"periodEnd,omitempty"`
	AmountHT     *decimal.Decimal `json:"amountHT,omitempty" validate:"omitempty,money"`
	TaxAmount    *decimal.Decimal `json:"taxAmount,omitempty" validate:"omitempty,money"`
	AmountTTC    *decimal.Decimal `json:"amountTTC,omitempty" validate:"omitempty,money"`
	RCDAmount    *decimal.Decimal `json:"rcdAmount,omitempty" validate:"omitempty,money"`
	PJAmount     *decimal.Decimal `json:"pjAmount,omitempty" validate:"omitempty,money"`
	FeesAmount   *decimal.Decimal `json:"feesAmount,omitempty" validate:"omitempty,money"`
	ResumeAmount *decimal.Decimal `json:"resumeAmount,omitempty" validate:"omitempty,money"`
}

// IsEmpty reports a patch that changes nothing.
func (p InstallmentPatch) IsEmpty() bool {
	return p == InstallmentPatch{}
}

// InstallmentEdit targets one installment of a bulk edit.
type InstallmentEdit struct {
	ID    uuid.UUID        `json:"id" validate:"required"`
	Patch InstallmentPatch `json:"patch"`
}

// NewInstallment holds the values of a manually added installment.
type NewInstallment struct {
	DueDate      time.Time       `json:"dueDate" validate:"required"`
	PeriodStart  time.Time       `json:"periodStart" validate:"required"`
	PeriodEnd    time.Time       `json:"periodEnd" validate:"required"`
	AmountHT     decimal.Decimal `json:"amountHT" validate:"money"`
	TaxAmount    decimal.Decimal `json:"taxAmount" validate:"money"`
	AmountTTC    decimal.Decimal `json:"amountTTC" validate:"money"`
	RCDAmount    decimal.Decimal `json:"rcdAmount" validate:"money"`
	PJAmount     decimal.Decimal `json:"pjAmount" validate:"money"`
	FeesAmount   decimal.Decimal `json:"feesAmount" validate:"money"`
	ResumeAmount decimal.Decimal `json:"resumeAmount" validate:"money"`
}

// ScheduleTotals sums a schedule's amounts. Manual edits are not rebalanced,
// so these may drift from the calculated premium.
type ScheduleTotals struct {
	Count     int             `json:"count"`
	AmountHT  decimal.Decimal `json:"amountHT"`
	TaxAmount decimal.Decimal `json:"taxAmount"`
	AmountTTC decimal.Decimal `json:"amountTTC"`
	Paid      decimal.Decimal `json:"paid"`
}

func TotalsOf(installments []*PaymentInstallment) ScheduleTotals {
	t := ScheduleTotals{Count: len(installments)}
	for _, i := range installments {
		t.AmountHT = t.AmountHT.Add(i.AmountHT)
		t.TaxAmount = t.TaxAmount.Add(i.TaxAmount)
		t.AmountTTC = t.AmountTTC.Add(i.AmountTTC)
		if i.Status == InstallmentStatusPaid {
			t.Paid = t.Paid.Add(i.AmountTTC)
		}
	}
	return t
}
