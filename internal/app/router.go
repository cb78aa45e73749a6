package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityhandler "github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/invites"
	"github.com/lboeman/solarforecastarbiter-api/internal/observability"
	"github.com/lboeman/solarforecastarbiter-api/internal/org"
	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	IdentityService *identityhandler.Service
	IdentityHandler *identityhandler.Handler
	RBACHandler     *rbac.Handler
	OrgHandler      *org.Handler
	InvitesHandler  *invites.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router. Authenticated routes sit behind the
// subject middleware; the organization lifecycle surface sits behind the
// administrator token instead.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(RequestLogger(params.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(SubjectMiddleware(params.Logger, params.IdentityService))
		params.IdentityHandler.MountRoutes(r)
		params.RBACHandler.MountRoutes(r)
		params.InvitesHandler.MountRoutes(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminTokenMiddleware(params.Logger, params.Config.AdminTokenHash))
		params.OrgHandler.MountRoutes(r)
	})

	return r
}
