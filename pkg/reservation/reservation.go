// Package reservation implements the exclusive-access scheduling engine:
// users reserve future time windows for sole use of the fleet, an admin
// approves or rejects them, and a tick task activates and retires them on
// schedule.
package reservation

import (
	"time"

	"github.com/google/uuid"
)

// Status is a reservation's position in its state machine. completed,
// rejected, and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Reservation is one exclusive-access window, pending through its terminal
// outcome.
type Reservation struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    time.Time  `json:"ends_at"`
	Status    Status     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// minWindow is the shortest reservation the spec allows.
const minWindow = 30 * time.Minute

// SnappedAndFuture reports whether start/end satisfy the time discipline:
// second == 0, minute in {0, 30}, end-start >= 30m, start strictly after now.
func SnappedAndFuture(start, end time.Time, now time.Time) bool {
	if !snapped(start) || !snapped(end) {
		return false
	}
	if end.Sub(start) < minWindow {
		return false
	}
	return start.After(now)
}

func snapped(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0 && (t.Minute() == 0 || t.Minute() == 30)
}

// Active is the scheduler-facing view of the currently active reservation,
// or nil when none is active.
type Active struct {
	ID     uuid.UUID
	UserID uuid.UUID
}
