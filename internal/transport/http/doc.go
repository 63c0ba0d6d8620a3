// Package http implements the HTTP handlers of the serve mode. Handlers are
// a thin layer between HTTP transport and the QA service: they parse the
// request, call the service and format the response.
//
// # Endpoints
//
//	POST /api/qa/runs        CSV body (text/csv) or multipart field "file"
//	GET  /api/qa/runs        recorded runs, newest first (?limit=N)
//	GET  /api/qa/runs/{id}   one recorded run with its report
//	GET  /api/health         process health
//	GET  /api/version        build information
//	GET  /metrics            Prometheus exposition
//
// POST /api/qa/runs accepts the run options as query parameters: age_col,
// time_col, id_cols, outlier_cols (comma separated), iqr_k and workers.
// Parameters that are absent fall back to the qa section of the config.
//
// # Error Handling
//
// Every failure is rendered as an errors.ErrorResponse:
//
//	{
//	    "success": false,
//	    "error": {
//	        "status_code": 400,
//	        "error_code": "VALIDATION_FAILED",
//	        "message": "Request validation failed",
//	        "details": {"field": "iqr_k", "message": "iqr_k must be greater than 0"}
//	    }
//	}
//
// # Testing
//
// Handlers are tested with httptest against a mocked QAServiceInterface.
package http
