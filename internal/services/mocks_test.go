package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ehrqa/internal/runstore"
)

// MockRunHistory is a mock for the RunHistory interface
type MockRunHistory struct {
	mock.Mock
}

func (m *MockRunHistory) Save(ctx context.Context, rec runstore.RunRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRunHistory) Get(ctx context.Context, id string) (*runstore.RunRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*runstore.RunRecord)
	return rec, args.Error(1)
}

func (m *MockRunHistory) List(ctx context.Context, limit int) ([]runstore.RunRecord, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]runstore.RunRecord)
	return recs, args.Error(1)
}
