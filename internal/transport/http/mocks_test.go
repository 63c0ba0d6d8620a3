package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/services"
)

// MockQAService is a mock for QAServiceInterface. Analyze drains the body
// so tests can assert on what the handler streamed.
type MockQAService struct {
	mock.Mock
	body string
}

func (m *MockQAService) Analyze(ctx context.Context, r io.Reader, opts operations.Options) (*services.AnalyzeResponse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.body = string(data)
	args := m.Called(ctx, opts)
	resp, _ := args.Get(0).(*services.AnalyzeResponse)
	return resp, args.Error(1)
}

func (m *MockQAService) ListRuns(ctx context.Context, limit int) ([]runstore.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]runstore.RunRecord)
	return runs, args.Error(1)
}

func (m *MockQAService) GetRun(ctx context.Context, id string) (*runstore.RunRecord, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*runstore.RunRecord)
	return run, args.Error(1)
}
