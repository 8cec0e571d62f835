package broadcaster

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sovereignengine/gateway/internal/principal"
)

// Handler serves the SSE metrics/event subscription endpoint.
type Handler struct {
	logger *slog.Logger
	broker *Broker
}

func NewHandler(logger *slog.Logger, broker *Broker) *Handler {
	return &Handler{logger: logger, broker: broker}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleSubscribe)
	return r
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			h.writeEvent(w, event, p.IsAdmin)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, event Event, isAdmin bool) {
	if event.Kind == EventReservationsChanged {
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", EventReservationsChanged)
		return
	}

	payload := event.Payload
	if !isAdmin {
		payload = payload.FilteredForNonAdmin()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshaling metrics snapshot", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventMetrics, data)
}
