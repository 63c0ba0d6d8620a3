package http

import (
	"net/http"

	apperrors "ehrqa/internal/errors"
)

// MetricsHandler exposes the Prometheus registry of the OpenTelemetry
// meter provider
type MetricsHandler struct {
	exporter http.Handler
}

// NewMetricsHandler wraps the exporter handler. A nil exporter answers 503.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		apperrors.WriteError(w, apperrors.NewWithDetails(
			http.StatusServiceUnavailable,
			"SERVICE_UNAVAILABLE",
			"Metrics exporter is disabled",
			"set telemetry.enabled and telemetry.metric_exporter: prometheus",
		))
		return
	}
	h.exporter.ServeHTTP(w, r)
}
