package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sovereignengine/gateway/internal/principal"
	"github.com/sovereignengine/gateway/internal/sovereignerr"
	"github.com/sovereignengine/gateway/internal/telemetry"
)

const tickInterval = 30 * time.Second

// changedChannel is the Redis pub/sub channel every mutating transition
// publishes to; the broadcaster relays it to SSE subscribers as a
// zero-payload "reservations-changed" event.
const changedChannel = "sovereign:reservations:changed"

// Engine owns the reservation state machine: the tick task, validated
// mutating operations, and the in-memory active cell dispatch reads.
type Engine struct {
	store  *Store
	rdb    *redis.Client
	logger *slog.Logger
	active *ActiveCell
}

// NewEngine creates an Engine. Call Recover once at startup before Run.
func NewEngine(store *Store, rdb *redis.Client, logger *slog.Logger) *Engine {
	return &Engine{store: store, rdb: rdb, logger: logger, active: NewActiveCell()}
}

// Active exposes the dispatch-facing read-only cell.
func (e *Engine) Active() *ActiveCell {
	return e.active
}

// Recover populates the active cell from the store's active row, if any —
// the only reconstruction needed on restart.
func (e *Engine) Recover(ctx context.Context) error {
	r, ok, err := e.store.ActiveReservation(ctx)
	if err != nil {
		return err
	}
	if ok {
		e.active.Set(&Active{ID: r.ID, UserID: r.UserID})
	}
	return nil
}

// Run performs one tick immediately, then on a fixed interval, until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("reservation engine started", "interval", tickInterval)

	if err := e.tick(ctx); err != nil {
		e.logger.Error("reservation tick", "error", err)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				e.logger.Error("reservation tick", "error", err)
			}
		}
	}
}

func (e *Engine) tick(ctx context.Context) error {
	start := time.Now()
	result, err := e.store.Tick(ctx, start)
	telemetry.ReservationTickDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	for range result.Completed {
		telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	}
	for range result.Cancelled {
		telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	}

	if result.Activated != nil {
		telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusActive)).Inc()
		e.active.Set(&Active{ID: result.Activated.ID, UserID: result.Activated.UserID})
	}
	if len(result.Completed) > 0 {
		if _, ok := e.active.Get(); ok {
			for _, id := range result.Completed {
				if active, _ := e.active.Get(); active.ID == id {
					e.active.Set(nil)
				}
			}
		}
	}

	if result.Changed() {
		e.publishChanged(ctx)
	}
	return nil
}

func (e *Engine) publishChanged(ctx context.Context) {
	if err := e.rdb.Publish(ctx, changedChannel, "").Err(); err != nil {
		e.logger.Warn("publishing reservations-changed", "error", err)
	}
}

// Create validates the caller's window and inserts a pending reservation.
func (e *Engine) Create(ctx context.Context, userID uuid.UUID, start, end time.Time, reason string) (Reservation, error) {
	if !SnappedAndFuture(start, end, time.Now()) {
		return Reservation{}, sovereignerr.New(sovereignerr.Validation,
			"start/end must snap to a 30-minute boundary, start must be in the future, and the window must be at least 30 minutes")
	}
	return e.store.Create(ctx, userID, start, end, reason)
}

// ListMine returns the caller's own reservations.
func (e *Engine) ListMine(ctx context.Context, userID uuid.UUID) ([]Reservation, error) {
	return e.store.ListByUser(ctx, userID)
}

// ListAll returns every reservation, for the admin calendar view.
func (e *Engine) ListAll(ctx context.Context) ([]Reservation, error) {
	return e.store.ListAll(ctx)
}

// Cancel cancels a pending or approved reservation. Callers other than the
// holder must be an admin.
func (e *Engine) Cancel(ctx context.Context, p principal.Principal, id uuid.UUID) error {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsHolder(r.UserID) && !p.IsAdmin {
		return sovereignerr.New(sovereignerr.Forbidden, "not the reservation holder")
	}
	if r.Status != StatusPending && r.Status != StatusApproved {
		return sovereignerr.New(sovereignerr.Conflict, "reservation is not cancellable from its current state")
	}
	if _, err := e.store.SetStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}
	telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	e.publishChanged(ctx)
	return nil
}

// Approve moves a pending reservation to approved, rejecting on overlap
// with any other approved or active window.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID) (Reservation, error) {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusPending {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "reservation is not pending")
	}
	overlaps, err := e.store.OverlapsActiveWindow(ctx, r.StartsAt, r.EndsAt, r.ID)
	if err != nil {
		return Reservation{}, err
	}
	if overlaps {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "window overlaps another approved or active reservation")
	}
	out, err := e.store.SetStatus(ctx, id, StatusApproved)
	if err != nil {
		return Reservation{}, err
	}
	telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusApproved)).Inc()
	e.publishChanged(ctx)
	return out, nil
}

// Reject moves a pending reservation to rejected.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID) (Reservation, error) {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusPending {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "reservation is not pending")
	}
	out, err := e.store.SetStatus(ctx, id, StatusRejected)
	if err != nil {
		return Reservation{}, err
	}
	telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusRejected)).Inc()
	e.publishChanged(ctx)
	return out, nil
}

// ForceActivate activates an approved reservation immediately, rejecting if
// another reservation is already active.
func (e *Engine) ForceActivate(ctx context.Context, id uuid.UUID) (Reservation, error) {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusApproved {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "reservation is not approved")
	}
	busy, err := e.store.HasActive(ctx, r.ID)
	if err != nil {
		return Reservation{}, err
	}
	if busy {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "another reservation is currently active")
	}
	out, err := e.store.SetStatus(ctx, id, StatusActive)
	if err != nil {
		return Reservation{}, err
	}
	telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusActive)).Inc()
	e.active.Set(&Active{ID: out.ID, UserID: out.UserID})
	e.publishChanged(ctx)
	return out, nil
}

// ForceDeactivate retires an active reservation immediately.
func (e *Engine) ForceDeactivate(ctx context.Context, id uuid.UUID) (Reservation, error) {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusActive {
		return Reservation{}, sovereignerr.New(sovereignerr.Conflict, "reservation is not active")
	}
	out, err := e.store.SetStatus(ctx, id, StatusCompleted)
	if err != nil {
		return Reservation{}, err
	}
	telemetry.ReservationTransitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	if active, ok := e.active.Get(); ok && active.ID == id {
		e.active.Set(nil)
	}
	e.publishChanged(ctx)
	return out, nil
}

// Delete removes a reservation outright. Active reservations are never
// deletable.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.Status == StatusActive {
		return sovereignerr.New(sovereignerr.Conflict, "an active reservation cannot be deleted")
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.publishChanged(ctx)
	return nil
}
