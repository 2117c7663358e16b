package mocks

import (
	"context"

	"github.com/segyhp/premium-engine/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, key string) (*domain.CalculationResult, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.CalculationResult), args.Bool(1), args.Error(2)
}

func (m *MockResultCache) Set(ctx context.Context, key string, result *domain.CalculationResult) error {
	args := m.Called(ctx, key, result)
	return args.Error(0)
}
