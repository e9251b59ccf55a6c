package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/config"
	"github.com/motorent/rentord/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config  *config.Config
	API     *API
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Checks  observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// request pipeline.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(RequestID)
	r.Use(Recovery(logger))

	// Operational routes.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Checks))
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	// API routes go through the full request pipeline.
	r.Route("/api", func(r chi.Router) {
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Post("/contracts/{id}/activate", deps.API.HandleActivateContract())
		r.Post("/contracts/{id}/complete", deps.API.HandleCompleteContract())
		r.Post("/contracts/{id}/cancel", deps.API.HandleCancelContract())

		r.Post("/invoices/payments", deps.API.HandleProcessPayment())
		r.Post("/invoices/with-charges", deps.API.HandleInvoiceWithCharges())

		r.Get("/events/history", deps.API.HandleEventHistory())
		r.Get("/analytics/kpis", deps.API.HandleKPIs())
		r.Get("/notifications/pending", deps.API.HandlePendingNotifications())
	})

	return r
}
