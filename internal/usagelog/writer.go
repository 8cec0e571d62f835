package usagelog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sovereignengine/gateway/internal/telemetry"
)

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer batches usage entries off the response path and flushes them to
// Store on a ticker. A full buffer drops the entry rather than block the
// caller — usage accounting is best-effort, never on the latency path.
type Writer struct {
	store  *Store
	logger *slog.Logger

	entries chan Entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWriter constructs a Writer; call Start to begin flushing.
func NewWriter(store *Store, logger *slog.Logger) *Writer {
	return &Writer{
		store:   store,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start launches the flush loop. Call Close to drain and stop.
func (w *Writer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

// Close stops the flush loop after draining any buffered entries.
func (w *Writer) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Log records one usage entry. Non-blocking: if the buffer is full the
// entry is dropped and counted.
func (w *Writer) Log(e Entry) {
	select {
	case w.entries <- e:
	default:
		telemetry.UsageRecordsDroppedTotal.Inc()
		w.logger.Warn("usage log buffer full, dropping entry",
			"user_id", e.UserID, "model_id", e.ModelID)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	for {
		select {
		case e := <-w.entries:
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			w.drain(batch)
			return
		}
	}
}

// drain flushes whatever is left in batch plus anything still sitting in
// the channel, then returns — called once on shutdown.
func (w *Writer) drain(batch []Entry) {
	for {
		select {
		case e := <-w.entries:
			batch = append(batch, e)
		default:
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *Writer) flush(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.InsertBatch(ctx, batch); err != nil {
		w.logger.Error("usage log flush failed", "count", len(batch), "error", err)
	}
}
