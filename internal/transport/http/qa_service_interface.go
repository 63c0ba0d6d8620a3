package http

import (
	"context"
	"io"

	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/services"
)

// QAServiceInterface defines the QA operations the HTTP layer needs
type QAServiceInterface interface {
	Analyze(ctx context.Context, r io.Reader, opts operations.Options) (*services.AnalyzeResponse, error)
	ListRuns(ctx context.Context, limit int) ([]runstore.RunRecord, error)
	GetRun(ctx context.Context, id string) (*runstore.RunRecord, error)
}
