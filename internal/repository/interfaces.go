package repository

import (
	"context"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product configuration storage
type ProductRepository interface {
	// Create stores a new product
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetByCode retrieves a product by its business code
	GetByCode(ctx context.Context, code string) (*domain.Product, error)
}

// QuoteRepository defines the interface for quote data operations
type QuoteRepository interface {
	// Create stores a new quote
	Create(ctx context.Context, quote *domain.Quote) error

	// GetByID retrieves a quote by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error)

	// UpdateFormData replaces the answers of a quote still in DRAFT or INCOMPLETE
	UpdateFormData(ctx context.Context, id uuid.UUID, formData domain.FormData) error

	// UpdateStatus moves a quote to a new status
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.QuoteStatus) error
}

// CalculationRepository keeps every priced result so a charged premium can be audited
type CalculationRepository interface {
	// Save stores a result against its quote
	Save(ctx context.Context, quoteID uuid.UUID, result *domain.CalculationResult) error

	// Latest returns the most recent result saved for a quote
	Latest(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error)
}

// InstallmentRepository defines the interface for payment schedule operations.
// State transitions are compare-and-set updates: they only apply when the row
// still satisfies the transition's precondition, and fail with
// ErrConcurrentModification otherwise.
type InstallmentRepository interface {
	// CreateSchedule inserts installments in one transaction
	CreateSchedule(ctx context.Context, installments []*domain.PaymentInstallment) error

	// ReplaceSchedule swaps a quote's schedule while none of it was emitted or paid
	ReplaceSchedule(ctx context.Context, quoteID uuid.UUID, installments []*domain.PaymentInstallment) error

	// GetByQuoteID retrieves a quote's schedule ordered by installment number
	GetByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]*domain.PaymentInstallment, error)

	// GetByID retrieves one installment
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error)

	// Update saves the editable fields of an unsettled installment
	Update(ctx context.Context, installment *domain.PaymentInstallment) error

	// UpdateMany saves several installments in one transaction
	UpdateMany(ctx context.Context, installments []*domain.PaymentInstallment) error

	// Insert adds an installment and saves the renumbered schedule
	Insert(ctx context.Context, added *domain.PaymentInstallment, renumbered []*domain.PaymentInstallment) error

	// DeleteMany removes unemitted installments and saves the renumbered
	// remainder; it refuses to leave the quote without installments
	DeleteMany(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID, renumbered []*domain.PaymentInstallment) error

	// MarkEmitted records the premium call of the next unvalidated installment
	MarkEmitted(ctx context.Context, id uuid.UUID, emissionDate time.Time) error

	// MarkPaid records the payment of an emitted installment
	MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error

	// MarkCancelled cancels an unsettled installment
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkOverdue flags emitted, pending installments due before now
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
