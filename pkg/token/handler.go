package token

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/principal"
)

// Handler provides HTTP handlers for the token API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a token Handler backed by the given pool.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, service: NewService(pool, logger)}
}

// Routes returns a chi.Router with all token routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/revoke", h.handleRevoke)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	resp, err := h.service.Create(r.Context(), p.UserID, req)
	if err != nil {
		h.logger.Error("creating token", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to create token")
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	items, err := h.service.List(r.Context(), p.UserID)
	if err != nil {
		h.logger.Error("listing tokens", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to list tokens")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"tokens": items,
		"count":  len(items),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid token ID")
		return
	}

	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	if err := h.service.Delete(r.Context(), id, p.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "token not found")
			return
		}
		h.logger.Error("deleting token", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to delete token")
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid token ID")
		return
	}

	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	if err := h.service.Revoke(r.Context(), id, p.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "token not found")
			return
		}
		h.logger.Error("revoking token", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to revoke token")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "revoked"})
}
