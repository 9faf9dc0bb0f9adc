package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/contacts"
	"github.com/meridian-crm/meridian-crm/internal/customers"
	"github.com/meridian-crm/meridian-crm/internal/documents"
	"github.com/meridian-crm/meridian-crm/internal/projects"
	"github.com/meridian-crm/meridian-crm/internal/rewards"
	"github.com/meridian-crm/meridian-crm/internal/roles"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	CustomersHandler *customers.Handler
	ContactsHandler  *contacts.Handler
	ProjectsHandler  *projects.Handler
	DocumentsHandler *documents.Handler
	WebhooksHandler  *webhooks.Handler
	RewardsHandler   *rewards.Handler
	AuditHandler     *audit.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/contacts", params.ContactsHandler.MountRoutes)
		r.Route("/projects", params.ProjectsHandler.MountRoutes)
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
		r.Route("/webhooks", params.WebhooksHandler.MountRoutes)
		r.Route("/rewards", params.RewardsHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
	})

	return r
}
