package domain

import (
	"time"

	"github.com/google/uuid"
)

type QuoteStatus string

const (
	QuoteStatusDraft                 QuoteStatus = "DRAFT"
	QuoteStatusIncomplete            QuoteStatus = "INCOMPLETE"
	QuoteStatusSubmitted             QuoteStatus = "SUBMITTED"
	QuoteStatusOfferSent             QuoteStatus = "OFFER_SENT"
	QuoteStatusPremiumCallEmitted    QuoteStatus = "PREMIUM_CALL_EMITTED"
	QuoteStatusInstallmentInProgress QuoteStatus = "INSTALLMENT_IN_PROGRESS"
	QuoteStatusContract              QuoteStatus = "CONTRACT"
	QuoteStatusRefused               QuoteStatus = "REFUSED"
)

// IsEditable reports whether form data may still change.
func (s QuoteStatus) IsEditable() bool {
	return s == QuoteStatusDraft || s == QuoteStatusIncomplete
}

// FormData holds the raw answers of a quote, one entry per form field.
type FormData map[string]interface{}

// Clone returns a shallow copy; top-level writes on the copy never reach f.
func (f FormData) Clone() FormData {
	out := make(FormData, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Quote is a client's request for cover on one product.
type Quote struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	ProductID   uuid.UUID              `json:"productId" db:"product_id"`
	Reference   string                 `json:"reference" db:"reference"`
	Status      QuoteStatus            `json:"status" db:"status"`
	FormData    FormData               `json:"formData"`
	CompanyData map[string]interface{} `json:"companyData"`
	SubmittedBy string                 `json:"submittedBy" db:"submitted_by"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time              `json:"updatedAt" db:"updated_at"`
}
