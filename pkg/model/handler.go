package model

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sovereignengine/gateway/internal/httpserver"
)

// Handler provides the OpenAI-compatible model listing endpoint.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler creates a model Handler backed by the given pool.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, store: NewStore(pool)}
}

// Routes returns a chi.Router with the model listing route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

// openAIModel mirrors the minimal shape of OpenAI's model list entries.
type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	models, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("listing models", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to list models")
		return
	}

	items := make([]openAIModel, 0, len(models))
	for _, m := range models {
		if !m.Loaded() {
			continue
		}
		items = append(items, openAIModel{ID: m.RepoRef, Object: "model", OwnedBy: "sovereign-engine"})
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   items,
	})
}
