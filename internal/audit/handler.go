package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// Handler exposes the audit trail, read-only. Access rides on the
// roles resource since audit review is an administrative concern.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, az authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: az}
}

// MountRoutes attaches audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.TokenRead))
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), listing.FromQuery(r))
	if err != nil {
		h.logger.Error("audit handler", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
