package routes

import (
	"net/http"

	"github.com/templui/feedbackloop/internal/app"
	"github.com/templui/feedbackloop/internal/handler"
	"github.com/templui/feedbackloop/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	feedback := handler.NewFeedbackHandler(app.IngestService, app.Cfg.IsDevelopment())
	health := handler.NewHealthHandler(app.HealthChecks()...)

	mux := http.NewServeMux()

	// ============================================================================
	// WIDGET API
	// ============================================================================

	// Ingestion (rate limited per client IP, preflight answered by CORS)
	rateLimit := middleware.RateLimit(app.Limiter)
	mux.Handle("POST /api/v1/feedback", rateLimit(http.HandlerFunc(feedback.Submit)))
	mux.HandleFunc("/api/v1/feedback", handler.MethodNotAllowed)

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// Fallback
	mux.HandleFunc("/", handler.NotFound)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.ClientIP(app.Cfg.TrustedProxies),
		middleware.RequestLogging,
		middleware.Recovery,
		middleware.CORS,
	)
}
