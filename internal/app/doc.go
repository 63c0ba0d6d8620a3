// Package app wires the ehrqa components together and manages the
// lifecycle of the serve mode.
//
// # Initialization Flow
//
//	1. The caller loads configuration and initializes the logger
//	2. OpenTelemetry providers are created from the telemetry section
//	3. The run history database is opened when storage is enabled
//	4. The pipeline, QA service and health service are built
//	5. The chi router and HTTP server are configured
//
// # Middleware Order
//
//	RequestID → RealIP → OTel → StructuredLogger → Recoverer → SecurityHeaders
//
// Routes under /api additionally set the JSON content type and the run
// timeout. The rate limiter only guards run creation.
//
// # Usage
//
//	a, err := app.NewApplication(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// The CLI run command uses the same container without the server and calls
// Close when done.
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM or cancellation of its context. Stop
// drains in-flight requests within the shutdown timeout, then closes the
// run history and flushes telemetry.
package app
