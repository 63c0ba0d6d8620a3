package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"ehrqa/pkg/contracts"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HistoryPinger is the run history as seen by health checks
type HistoryPinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports process health for serve mode. A nil history means
// run history is disabled, which is healthy.
type HealthService struct {
	version   string
	history   HistoryPinger
	startTime time.Time
	logger    *slog.Logger
}

type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   RuntimeInfo              `json:"runtime"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type RuntimeInfo struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	Goroutines    int     `json:"goroutines"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VersionResponse is the body of GET /api/version
type VersionResponse struct {
	contracts.VersionInfo
	StartTime string `json:"start_time"`
}

func NewHealthService(version string, history HistoryPinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		history:   history,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports "degraded" when run history is enabled but its
// database does not answer
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: RuntimeInfo{
			UptimeSeconds: time.Since(hs.startTime).Seconds(),
			GoVersion:     runtime.Version(),
			Goroutines:    runtime.NumGoroutine(),
		},
		Services: map[string]ServiceHealth{"history": hs.historyHealth(ctx)},
	}
	if status.Services["history"].Status == "unavailable" {
		status.Status = StatusDegraded
	}

	hs.logger.DebugContext(ctx, "health check completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) historyHealth(ctx context.Context) ServiceHealth {
	if hs.history == nil {
		return ServiceHealth{Status: "disabled", Message: "run history is not recorded"}
	}
	if err := hs.history.Ping(ctx); err != nil {
		hs.logger.WarnContext(ctx, "run history ping failed", slog.String("error", err.Error()))
		return ServiceHealth{Status: "unavailable", Message: err.Error()}
	}
	return ServiceHealth{Status: "enabled"}
}

func (hs *HealthService) Version() VersionResponse {
	info := contracts.GetVersionInfo()
	info.Version = hs.version
	return VersionResponse{
		VersionInfo: info,
		StartTime:   hs.startTime.Format(time.RFC3339),
	}
}
