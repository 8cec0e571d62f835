package usage

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/principal"
)

// Handler provides HTTP handlers for the usage aggregation API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a usage Handler backed by the given pool.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, service: NewService(NewStore(pool))}
}

// Routes returns a chi.Router with all usage routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleSummary)
	r.Get("/timeline", h.handleTimeline)
	return r
}

func (h *Handler) period(r *http.Request) (Period, bool) {
	p := Period(r.URL.Query().Get("period"))
	if p == "" {
		p = PeriodDay
	}
	return p, p.Valid()
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	period, ok := h.period(r)
	if !ok {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "period must be one of hour, day, week, month")
		return
	}

	sum, err := h.service.Summary(r.Context(), p.UserID, period)
	if err != nil {
		h.logger.Error("summarizing usage", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to summarize usage")
		return
	}

	httpserver.Respond(w, http.StatusOK, sum)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	period, ok := h.period(r)
	if !ok {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "period must be one of hour, day, week, month")
		return
	}

	points, err := h.service.Timeline(r.Context(), p.UserID, period)
	if err != nil {
		h.logger.Error("timelining usage", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "failed to build usage timeline")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"period":   period,
		"timeline": points,
	})
}
