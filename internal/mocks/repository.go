package mocks

import (
	"context"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) GetByCode(ctx context.Context, code string) (*domain.Product, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockQuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *MockQuoteRepository) UpdateFormData(ctx context.Context, id uuid.UUID, formData domain.FormData) error {
	args := m.Called(ctx, id, formData)
	return args.Error(0)
}

func (m *MockQuoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.QuoteStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockCalculationRepository struct {
	mock.Mock
}

func (m *MockCalculationRepository) Save(ctx context.Context, quoteID uuid.UUID, result *domain.CalculationResult) error {
	args := m.Called(ctx, quoteID, result)
	return args.Error(0)
}

func (m *MockCalculationRepository) Latest(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalculationResult), args.Error(1)
}

type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) CreateSchedule(ctx context.Context, installments []*domain.PaymentInstallment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) ReplaceSchedule(ctx context.Context, quoteID uuid.UUID, installments []*domain.PaymentInstallment) error {
	args := m.Called(ctx, quoteID, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) GetByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentInstallment), args.Error(1)
}

func (m *MockInstallmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockInstallmentRepository) Update(ctx context.Context, installment *domain.PaymentInstallment) error {
	args := m.Called(ctx, installment)
	return args.Error(0)
}

func (m *MockInstallmentRepository) UpdateMany(ctx context.Context, installments []*domain.PaymentInstallment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) Insert(ctx context.Context, added *domain.PaymentInstallment, renumbered []*domain.PaymentInstallment) error {
	args := m.Called(ctx, added, renumbered)
	return args.Error(0)
}

func (m *MockInstallmentRepository) DeleteMany(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID, renumbered []*domain.PaymentInstallment) error {
	args := m.Called(ctx, quoteID, ids, renumbered)
	return args.Error(0)
}

func (m *MockInstallmentRepository) MarkEmitted(ctx context.Context, id uuid.UUID, emissionDate time.Time) error {
	args := m.Called(ctx, id, emissionDate)
	return args.Error(0)
}

func (m *MockInstallmentRepository) MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	args := m.Called(ctx, id, method, paidAt)
	return args.Error(0)
}

func (m *MockInstallmentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockInstallmentRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
