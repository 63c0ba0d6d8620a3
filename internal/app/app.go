package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ehrqa/internal/config"
	apperrors "ehrqa/internal/errors"
	"ehrqa/internal/infrastructure"
	customMiddleware "ehrqa/internal/middleware"
	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/services"
	handlers "ehrqa/internal/transport/http"
	"ehrqa/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Store         *runstore.Store // nil when run history is disabled
	Pipeline      *operations.Pipeline
	QAService     *services.QAService
	HealthService *services.HealthService
	Router        *chi.Mux
	Server        *http.Server
}

// NewApplication wires telemetry, run history, services and the HTTP router
// for cfg. The caller owns the returned application and must Close (or Stop)
// it.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Bool("history", cfg.Storage.Enabled),
		slog.Bool("telemetry", cfg.Telemetry.Enabled))

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
	}

	if err := a.initializeServices(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	tracer, err := operations.NewPipelineTracer(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline tracer: %w", err)
	}
	a.Pipeline = operations.NewPipeline(a.Logger, tracer)

	// A nil *runstore.Store must not reach the service as a non-nil interface
	var (
		history services.RunHistory
		pinger  services.HistoryPinger
	)
	if a.Config.Storage.Enabled {
		store, err := runstore.Open(ctx, a.Config.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		a.Store = store
		history, pinger = store, store
		a.Logger.InfoContext(ctx, "Run history opened", slog.String("path", store.Path()))
	}

	a.QAService = services.NewQAService(a.Pipeline, history, a.Logger)
	a.HealthService = services.NewHealthService(contracts.Version, pinger, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger, false)

	// RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		a.setupAPIRoutes(r)
	})

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RunTimeout))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		var uploadMiddleware []func(http.Handler) http.Handler
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			uploadMiddleware = append(uploadMiddleware,
				customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		qaHandler := handlers.NewQAHandler(a.QAService, a.Config.QA, a.Config.Server.MaxUploadBytes, a.Logger)
		r.Mount("/qa/runs", qaHandler.Routes(uploadMiddleware...))
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server in the background. A listen failure is logged
// and cancel is called so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("addr", a.Server.Addr),
		slog.String("version", contracts.Version),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Server started",
		slog.String("address", a.Server.Addr),
		slog.Bool("metrics", a.OTelProviders.PrometheusHTTP != nil))
	return nil
}

// Stop gracefully stops the server and releases every resource
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the run history and flushes telemetry. It does not touch
// the HTTP server.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run history: %w", err))
		}
		a.Store = nil
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
		a.OTelProviders = nil
	}
	return errors.Join(errs...)
}

// Run serves until ctx is done, SIGINT or SIGTERM arrives, or the listener
// fails, then shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(ctx)
}
