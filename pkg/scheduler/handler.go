package scheduler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/principal"
	"github.com/sovereignengine/gateway/internal/usagelog"
)

// Handler serves the OpenAI-compatible completions endpoints, the gateway's
// hot path.
type Handler struct {
	logger    *slog.Logger
	scheduler *Scheduler
	client    *http.Client
}

func NewHandler(logger *slog.Logger, scheduler *Scheduler) *Handler {
	return &Handler{logger: logger, scheduler: scheduler, client: &http.Client{}}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/chat/completions", h.handleDispatch)
	r.Post("/completions", h.handleDispatch)
	return r
}

// requestFields is the subset of an OpenAI-shaped request body the
// scheduler needs, decoded without disturbing the verbatim bytes forwarded
// to the worker.
type requestFields struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type workerUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "missing authentication")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "failed to read request body")
		return
	}

	var fields requestFields
	if err := json.Unmarshal(body, &fields); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "request body is not valid JSON")
		return
	}

	resolved, err := h.scheduler.Resolve(r.Context(), p, fields.Model)
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	defer resolved.Slot.Release()

	start := time.Now()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, resolved.Addr+r.URL.Path, bytes.NewReader(body))
	if err != nil {
		httpserver.RespondSovereignErr(w, h.logger, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+resolved.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadGateway, "unavailable", "worker request failed")
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	var usage workerUsage
	if fields.Stream {
		usage = h.copyStreaming(w, resp.Body)
	} else {
		usage = h.copyWhole(w, resp.Body)
	}

	h.scheduler.LogUsage(usagelog.Entry{
		UserID:        p.UserID,
		TokenID:       p.TokenID,
		ModelID:       resolved.Model.ID,
		CategoryID:    resolved.Model.CategoryID,
		InputTokens:   usage.PromptTokens,
		OutputTokens:  usage.CompletionTokens,
		LatencyMillis: time.Since(start).Milliseconds(),
		Timestamp:     time.Now(),
	})
}

// copyWhole forwards a non-streaming response byte-for-byte and extracts
// its usage object, if present, for accounting.
func (h *Handler) copyWhole(w http.ResponseWriter, body io.Reader) workerUsage {
	data, err := io.ReadAll(body)
	if err != nil {
		h.logger.Warn("reading worker response", "error", err)
		return workerUsage{}
	}
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("writing response to caller", "error", err)
	}

	var envelope struct {
		Usage workerUsage `json:"usage"`
	}
	_ = json.Unmarshal(data, &envelope)
	return envelope.Usage
}

// copyStreaming forwards a server-sent-event response line by line,
// flushing after every line, and inspects each chunk for a trailing usage
// object (sent when the caller requested stream_options.include_usage).
func (h *Handler) copyStreaming(w http.ResponseWriter, body io.Reader) workerUsage {
	flusher, _ := w.(http.Flusher)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var usage workerUsage
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			h.logger.Warn("writing stream chunk to caller", "error", err)
			return usage
		}
		if flusher != nil {
			flusher.Flush()
		}

		if payload, ok := strings.CutPrefix(line, "data: "); ok && payload != "[DONE]" {
			var chunk struct {
				Usage workerUsage `json:"usage"`
			}
			if json.Unmarshal([]byte(payload), &chunk) == nil && (chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0) {
				usage = chunk.Usage
			}
		}
	}
	if err := scanner.Err(); err != nil {
		h.logger.Warn("scanning worker stream", "error", err)
	}
	return usage
}
