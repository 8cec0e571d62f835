package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/pkg/token"
)

// Handler provides HTTP handlers for the admin settings API.
type Handler struct {
	logger *slog.Logger
	reader *Reader
}

// NewHandler creates a settings Handler backed by the given Reader.
func NewHandler(logger *slog.Logger, reader *Reader) *Handler {
	return &Handler{logger: logger, reader: reader}
}

// Routes returns a chi.Router with the admin settings routes mounted. All
// routes require the admin role.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(token.RequireAdmin)
	r.Get("/", h.handleGet)
	r.Put("/", h.handlePut)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.reader.Snapshot())
}

// updateRequest is a partial key/value map; only present keys are changed.
type updateRequest map[string]float64

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpserver.Decode(r, &req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	for key, value := range req {
		if err := h.reader.Update(r.Context(), key, value); err != nil {
			httpserver.RespondSovereignErr(w, h.logger, err)
			return
		}
	}

	httpserver.Respond(w, http.StatusOK, h.reader.Snapshot())
}
