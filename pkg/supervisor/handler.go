package supervisor

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/httpserver"
)

// Handler provides the admin-only container control API.
type Handler struct {
	logger     *slog.Logger
	supervisor *Supervisor
}

func NewHandler(logger *slog.Logger, supervisor *Supervisor) *Handler {
	return &Handler{logger: logger, supervisor: supervisor}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/start", h.handleStart)
	r.Post("/stop", h.handleStop)
	r.Get("/", h.handleList)
	return r
}

type startRequest struct {
	ModelID       uuid.UUID `json:"model_id"`
	NetworkNSFD   string    `json:"network_ns_fd"`
	ModelFilename string    `json:"model_filename"`
	MaxSlots      int       `json:"max_slots"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	worker, err := h.supervisor.Start(r.Context(), req.ModelID, req.NetworkNSFD, req.ModelFilename, req.MaxSlots)
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, worker)
}

type stopRequest struct {
	ModelID uuid.UUID `json:"model_id"`
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	if err := h.supervisor.Stop(r.Context(), req.ModelID); err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.supervisor.List(r.Context())
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"containers": ids})
}
