package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// RespondSovereignErr writes a response for a sovereignerr.Error, mapping
// its Kind to an HTTP status and its Message to the public envelope. The
// Cause, if any, is logged but never rendered to the caller.
func RespondSovereignErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	se, ok := sovereignerr.As(err)
	if !ok {
		se = sovereignerr.Wrap(sovereignerr.Internal, "an internal error occurred", err)
	}
	if se.Cause != nil {
		logger.Error("request failed", "kind", se.Kind.String(), "message", se.Message, "cause", se.Cause)
	}
	if se.Kind == sovereignerr.QueueTimeout && se.RetryAfter > 0 {
		seconds := int(se.RetryAfter.Round(time.Second) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	RespondError(w, sovereignerr.HTTPStatus(se.Kind), se.Kind.String(), se.Message)
}
