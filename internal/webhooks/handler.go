package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
)

// Handler exposes the webhook endpoints API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer Enqueuer
	validate *validator.Validate
	authz    authz.Middleware
}

// Enqueuer hands deliveries to the background queue.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, delivery Delivery) error
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer, az authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, validate: validator.New(), authz: az}
}

// MountRoutes attaches webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWebhooks, authz.TokenRead))
		r.Get("/", h.list)
		r.Get("/events", h.events)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWebhooks, authz.TokenCreate))
		r.Post("/", h.create)
		r.Post("/{id}/test", h.test)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWebhooks, authz.TokenEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceWebhooks, authz.TokenDelete))
		r.Delete("/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), listing.FromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) events(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string][]string{"events": Events()})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	endpoint, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, endpoint)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	endpoint, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, endpoint)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	endpoint, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, endpoint)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// test enqueues a ping delivery so operators can verify a registration.
func (h *Handler) test(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	endpoint, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if len(endpoint.Events) == 0 {
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Events", "endpoint has no subscribed events")
		return
	}
	data, _ := json.Marshal(map[string]string{"ping": "test"})
	delivery := Delivery{
		ID:         uuid.New(),
		EndpointID: endpoint.ID,
		Event:      endpoint.Events[0],
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if err := h.enqueuer.EnqueueDelivery(r.Context(), delivery); err != nil {
		h.logger.Error("webhooks handler", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"delivery_id": delivery.ID.String()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (EndpointInput, bool) {
	var input EndpointInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return input, false
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return input, false
	}
	return input, true
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid endpoint ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "endpoint not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("webhooks handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
