package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/auth"
	"github.com/upkeep-hq/upkeep/internal/observability"
	"github.com/upkeep-hq/upkeep/internal/requests"
	"github.com/upkeep-hq/upkeep/internal/shifts"
	"github.com/upkeep-hq/upkeep/jobs"
	"github.com/upkeep-hq/upkeep/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Auth            *auth.Service
	ActorsHandler   *actors.Handler
	ShiftsHandler   *shifts.Handler
	RequestsHandler *requests.Handler
	AuditHandler    *audit.Handler
	ReportHandler   *report.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults. All domain
// routes live under /api/v1 behind bearer-key auth; health and metrics stay
// open at the root.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(params.Auth, params.Config, params.Logger))

		if params.ActorsHandler != nil {
			params.ActorsHandler.MountRoutes(r)
		}
		if params.ShiftsHandler != nil {
			params.ShiftsHandler.MountRoutes(r)
		}
		if params.RequestsHandler != nil {
			params.RequestsHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.ReportHandler != nil {
			r.Route("/reports", params.ReportHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
