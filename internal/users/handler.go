package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// BulkEnqueuer submits an asynchronous bulk batch to the queue.
type BulkEnqueuer interface {
	EnqueueBulkUsers(ctx context.Context, jobID, actorID int64) error
}

// Handler exposes the users API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	bulk     *BulkHandler
	jobs     *BulkJobStore
	enqueuer BulkEnqueuer
	validate *validator.Validate
	authz    authz.Middleware
	maxBulk  int
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, bulk *BulkHandler, jobs *BulkJobStore, enqueuer BulkEnqueuer, az authz.Middleware, maxBulk int) *Handler {
	if maxBulk <= 0 {
		maxBulk = 500
	}
	return &Handler{
		logger:   logger,
		service:  service,
		bulk:     bulk,
		jobs:     jobs,
		enqueuer: enqueuer,
		validate: validator.New(),
		authz:    az,
		maxBulk:  maxBulk,
	}
}

// MountRoutes attaches user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceUsers, authz.TokenRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/bulk-jobs/{id}", h.bulkJob)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceUsers, authz.TokenCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceUsers, authz.TokenEdit))
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceUsers, authz.TokenDelete))
		r.Delete("/{id}", h.remove)
	})
	// The batch endpoints carry their own permission gate inside the
	// orchestrator so sync API calls and queued jobs share it.
	r.Post("/bulk", h.bulkSync)
	r.Post("/bulk-jobs", h.bulkAsync)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), listing.FromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
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

func (h *Handler) bulkSync(w http.ResponseWriter, r *http.Request) {
	actorID, items, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	result, err := h.bulk.Handle(r.Context(), actorID, items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) bulkAsync(w http.ResponseWriter, r *http.Request) {
	actorID, items, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	// Fail fast on missing bulk permission instead of queueing a job
	// that is doomed to be rejected by the worker.
	allowed, err := h.authz.Allowed(r.Context(), actorID, authz.ResourceUsers, authz.TokenBulk)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !allowed {
		h.respondError(w, ErrBulkForbidden)
		return
	}
	jobID, err := h.jobs.Create(r.Context(), actorID, items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.enqueuer.EnqueueBulkUsers(r.Context(), jobID, actorID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status": BulkJobPending})
}

func (h *Handler) bulkJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) decodeBulk(w http.ResponseWriter, r *http.Request) (int64, []BulkItem, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return 0, nil, false
	}
	actorID, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return 0, nil, false
	}
	var items []BulkItem
	if err := httpx.DecodeJSON(r, &items); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return 0, nil, false
	}
	if len(items) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "batch must contain at least one item")
		return 0, nil, false
	}
	if len(items) > h.maxBulk {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "batch exceeds the configured item limit")
		return 0, nil, false
	}
	return actorID, items, true
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "username or email already exists")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrBulkForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "bulk permission required")
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
