package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/profitcast/profitcast/internal/audit"
	"github.com/profitcast/profitcast/internal/directory"
	"github.com/profitcast/profitcast/internal/identity"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/observability"
	"github.com/profitcast/profitcast/internal/shared"
	"github.com/profitcast/profitcast/internal/vault"
	"github.com/profitcast/profitcast/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Authenticator    identity.Authenticator
	AuthHandler      *identity.Handler
	VaultHandler     *vault.Handler
	AuditHandler     *audit.Handler
	NotifyHandler    *notify.Handler
	DirectoryHandler *directory.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.RequireAuth)
		r.Route("/vault", params.VaultHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.Authenticator.RequireLevel(shared.LevelManagingDirector))
				params.AuditHandler.MountRoutes(r)
			})
		}
		if params.NotifyHandler != nil {
			r.Route("/notifications", params.NotifyHandler.MountRoutes)
		}
		if params.DirectoryHandler != nil {
			r.Route("/directory", params.DirectoryHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
