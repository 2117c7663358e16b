package mocks

import (
	"context"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/tariff"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockPremiumService struct {
	mock.Mock
}

func (m *MockPremiumService) Calculate(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalculationResult), args.Error(1)
}

func (m *MockPremiumService) Recalculate(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.CalculationResult, error) {
	args := m.Called(ctx, quoteID, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalculationResult), args.Error(1)
}

func (m *MockPremiumService) ApplyOverrides(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.Quote, error) {
	args := m.Called(ctx, quoteID, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *MockPremiumService) GenerateSchedule(ctx context.Context, quoteID uuid.UUID, request domain.GenerateScheduleRequest) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, quoteID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockPremiumService) GetSchedule(ctx context.Context, quoteID uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockPremiumService) PatchInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, patch domain.InstallmentPatch) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID, installmentID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPremiumService) PatchInstallments(ctx context.Context, quoteID uuid.UUID, edits []domain.InstallmentEdit) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, quoteID, edits)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockPremiumService) AddInstallment(ctx context.Context, quoteID uuid.UUID, values domain.NewInstallment) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, quoteID, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockPremiumService) DeleteInstallments(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, quoteID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockPremiumService) EmitInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID, installmentID, emissionDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPremiumService) EmitNextInstallment(ctx context.Context, quoteID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID, emissionDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPremiumService) RecordPayment(ctx context.Context, quoteID, installmentID uuid.UUID, request domain.RecordPaymentRequest) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID, installmentID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPremiumService) CancelInstallment(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, quoteID, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPremiumService) PremiumCall(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PremiumCallResponse, error) {
	args := m.Called(ctx, quoteID, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PremiumCallResponse), args.Error(1)
}

func (m *MockPremiumService) MarkOverdue(ctx context.Context) (*domain.OverdueResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverdueResponse), args.Error(1)
}

func (m *MockPremiumService) LookupActivity(code string) (tariff.Activity, error) {
	args := m.Called(code)
	return args.Get(0).(tariff.Activity), args.Error(1)
}

func (m *MockPremiumService) Activities() []tariff.Activity {
	args := m.Called()
	return args.Get(0).([]tariff.Activity)
}

// NewMockPremiumService creates a new mock premium service instance
func NewMockPremiumService() *MockPremiumService {
	return &MockPremiumService{}
}
