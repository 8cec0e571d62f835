package httpserver

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
)

func TestRespondSovereignErrSetsRetryAfterOnQueueTimeout(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.Default()

	err := sovereignerr.NewQueueTimeout("timed out waiting for a free slot", 5*time.Second)
	RespondSovereignErr(w, logger, err)

	if got := w.Header().Get("Retry-After"); got != "5" {
		t.Errorf("Retry-After header = %q, want %q", got, "5")
	}
	if w.Code != 429 {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestRespondSovereignErrOmitsRetryAfterForOtherKinds(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.Default()

	RespondSovereignErr(w, logger, sovereignerr.New(sovereignerr.NotFound, "model not found"))

	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Retry-After header = %q, want empty", got)
	}
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
