package reservation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/principal"
)

// Handler provides HTTP handlers for both the user-facing and admin
// reservation APIs; the caller mounts each Routes() set under its own
// prefix with the appropriate auth middleware.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// UserRoutes mounts the caller-scoped CRUD, cancel, calendar, and active
// endpoints.
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleListMine)
	r.Get("/active", h.handleActive)
	r.Get("/calendar", h.handleCalendar)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/cancel", h.handleCancel)
	return r
}

// AdminRoutes mounts the admin transition endpoints.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleCalendar)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/activate", h.handleForceActivate)
	r.Post("/{id}/deactivate", h.handleForceDeactivate)
	r.Delete("/{id}", h.handleDelete)
	return r
}

type createRequest struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Reason   string    `json:"reason"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	res, err := h.engine.Create(r.Context(), p.UserID, req.StartsAt, req.EndsAt, req.Reason)
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, res)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	items, err := h.engine.ListMine(r.Context(), p.UserID)
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"reservations": items})
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.ListAll(r.Context())
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"reservations": items})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	active, ok := h.engine.Active().Get()
	if !ok {
		httpserver.Respond(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"active": active})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid reservation ID")
		return
	}
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}
	if err := h.engine.Cancel(r.Context(), p, id); err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid reservation ID")
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Reject)
}

func (h *Handler) handleForceActivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ForceActivate)
}

func (h *Handler) handleForceDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ForceDeactivate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (Reservation, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid reservation ID")
		return
	}
	res, err := fn(r.Context(), id)
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, res)
}
