package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a reservation id has no matching row.
var ErrNotFound = errors.New("reservation not found")

const reservationColumns = "id, user_id, starts_at, ends_at, status, reason, created_at, updated_at"

// Store persists reservations to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.StartsAt, &r.EndsAt, &r.Status, &r.Reason, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create inserts a new pending reservation.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, start, end time.Time, reason string) (Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO reservations (id, user_id, starts_at, ends_at, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+reservationColumns,
		uuid.New(), userID, start, end, StatusPending, reason)
	return scanReservation(row)
}

// GetByID loads one reservation, wrapping pgx.ErrNoRows as ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Reservation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return r, err
}

// ListByUser returns a user's reservations, most recent first.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = $1 ORDER BY starts_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// ListAll returns every reservation, used by the admin calendar view.
func (s *Store) ListAll(ctx context.Context) ([]Reservation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// OverlapsActiveWindow reports whether any reservation other than excludeID
// in states {approved, active} overlaps [start, end).
func (s *Store) OverlapsActiveWindow(ctx context.Context, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE id != $1
			  AND status IN ('approved', 'active')
			  AND starts_at < $3 AND ends_at > $2
		)`, excludeID, start, end).Scan(&exists)
	return exists, err
}

// HasActive reports whether any reservation is currently in the active
// state, used by force-activate's single-active invariant.
func (s *Store) HasActive(ctx context.Context, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reservations WHERE id != $1 AND status = 'active')`, excludeID).Scan(&exists)
	return exists, err
}

// SetStatus transitions a reservation to newStatus.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, newStatus Status) (Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE reservations SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+reservationColumns, id, newStatus)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return r, err
}

// Delete removes a reservation outright; only non-active reservations may
// be deleted, enforced by the caller.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveReservation returns the single reservation in state active, if any,
// used on startup to reconstruct the in-memory active cell.
func (s *Store) ActiveReservation(ctx context.Context) (Reservation, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE status = 'active' LIMIT 1`)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, err
	}
	return r, true, nil
}

// TickResult reports the transitions a single tick performed, for logging
// and the reservations-changed broadcast decision.
type TickResult struct {
	Completed []uuid.UUID
	Activated *Reservation
	Cancelled []uuid.UUID
}

// Changed reports whether the tick produced any transition worth
// broadcasting.
func (t TickResult) Changed() bool {
	return len(t.Completed) > 0 || t.Activated != nil || len(t.Cancelled) > 0
}

// Tick performs, in one transaction: complete expired active reservations,
// activate the earliest approved reservation whose start has passed (if
// none is active), and auto-cancel stale pending reservations whose start
// has passed.
func (s *Store) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TickResult{}, err
	}
	defer tx.Rollback(ctx)

	var result TickResult

	completedRows, err := tx.Query(ctx, `
		UPDATE reservations SET status = 'completed', updated_at = now()
		WHERE status = 'active' AND ends_at <= $1
		RETURNING id`, now)
	if err != nil {
		return TickResult{}, err
	}
	for completedRows.Next() {
		var id uuid.UUID
		if err := completedRows.Scan(&id); err != nil {
			completedRows.Close()
			return TickResult{}, err
		}
		result.Completed = append(result.Completed, id)
	}
	completedRows.Close()
	if err := completedRows.Err(); err != nil {
		return TickResult{}, err
	}

	var stillActive bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE status = 'active')`).Scan(&stillActive); err != nil {
		return TickResult{}, err
	}

	if !stillActive {
		row := tx.QueryRow(ctx, `
			UPDATE reservations SET status = 'active', updated_at = now()
			WHERE id = (
				SELECT id FROM reservations
				WHERE status = 'approved' AND starts_at <= $1
				ORDER BY starts_at ASC
				LIMIT 1
			)
			RETURNING `+reservationColumns, now)
		activated, err := scanReservation(row)
		if err == nil {
			result.Activated = &activated
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return TickResult{}, err
		}
	}

	staleRows, err := tx.Query(ctx, `
		UPDATE reservations SET status = 'cancelled', updated_at = now()
		WHERE status = 'pending' AND starts_at <= $1
		RETURNING id`, now)
	if err != nil {
		return TickResult{}, err
	}
	for staleRows.Next() {
		var id uuid.UUID
		if err := staleRows.Scan(&id); err != nil {
			staleRows.Close()
			return TickResult{}, err
		}
		result.Cancelled = append(result.Cancelled, id)
	}
	staleRows.Close()
	if err := staleRows.Err(); err != nil {
		return TickResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TickResult{}, err
	}
	return result, nil
}
