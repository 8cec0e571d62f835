package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
)

// refreshInterval bounds how stale a reader's cached copy may be; the spec
// only requires that settings-API writes propagate "within a few seconds".
const refreshInterval = 3 * time.Second

// Reader is a read-mostly, eventually-consistent view over the settings
// store. Dispatch reads Fairness() on every request without touching the
// database; a background loop refreshes the cache on refreshInterval.
type Reader struct {
	store  *Store
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]float64
}

// NewReader creates a Reader and performs one synchronous load so the first
// caller never observes an empty cache.
func NewReader(ctx context.Context, store *Store, logger *slog.Logger) (*Reader, error) {
	r := &Reader{store: store, logger: logger, cache: map[string]float64{}}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Run refreshes the cache on a fixed interval until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Error("refreshing settings cache", "error", err)
			}
		}
	}
}

func (r *Reader) refresh(ctx context.Context) error {
	loaded, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	merged := make(map[string]float64, len(Defaults))
	for k, v := range Defaults {
		merged[k] = v
	}
	for k, v := range loaded {
		merged[k] = v
	}

	r.mu.Lock()
	r.cache = merged
	r.mu.Unlock()
	return nil
}

// Fairness returns the currently cached fairness parameters.
func (r *Reader) Fairness() Fairness {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Fairness{
		BasePriority:  r.cache[KeyFairnessBasePriority],
		WaitWeight:    r.cache[KeyFairnessWaitWeight],
		UsageWeight:   r.cache[KeyFairnessUsageWeight],
		UsageScale:    r.cache[KeyFairnessUsageScale],
		WindowMinutes: int(r.cache[KeyFairnessWindowMinutes]),
		QueueTimeoutS: int(r.cache[KeyQueueTimeoutSecs]),
	}
}

// Snapshot returns the full closed-set key/value view for the admin API.
func (r *Reader) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.cache))
	for k, v := range r.cache {
		out[k] = v
	}
	return out
}

// Update validates and persists one key, then refreshes the local cache so
// the caller's own next read is already consistent.
func (r *Reader) Update(ctx context.Context, key string, value float64) error {
	if !IsValidKey(key) {
		return sovereignerr.New(sovereignerr.Validation, "unknown settings key: "+key)
	}
	if err := r.store.Set(ctx, key, value); err != nil {
		return err
	}
	return r.refresh(ctx)
}
