// Package broadcaster samples host and fleet metrics on a fixed interval
// and fans them out to independent per-subscriber SSE streams, dropping
// backlog rather than buffering unbounded when a subscriber falls behind.
package broadcaster

import (
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes the two event shapes a subscriber can receive on
// its single channel.
type EventKind string

const (
	EventMetrics             EventKind = "metrics"
	EventReservationsChanged EventKind = "reservations_changed"
)

// Event is one message delivered to a subscriber.
type Event struct {
	Kind    EventKind
	Payload Snapshot // zero value for EventReservationsChanged
	Lagged  bool
}

// GPUMemory reports one GPU's usable memory and utilization. On AMD
// unified-memory hardware Used/Total are the sum of the VRAM and GTT
// pools, reflecting usable memory on APUs rather than dedicated-VRAM
// semantics. UtilizationPercent is amdgpu's gpu_busy_percent, -1 if unread.
type GPUMemory struct {
	Index              int   `json:"index"`
	TotalBytes         int64 `json:"total_bytes"`
	UsedBytes          int64 `json:"used_bytes"`
	UtilizationPercent int   `json:"utilization_percent"`
}

// GateSnapshot is one model's queue occupancy at sample time.
type GateSnapshot struct {
	ModelID  string  `json:"model_id"`
	MaxSlots int     `json:"max_slots"`
	InFlight int     `json:"in_flight"`
	Queued   int     `json:"queued"`
	AvgWaitS float64 `json:"avg_wait_seconds"`
}

// WorkerHealth is one worker's last probe result.
type WorkerHealth struct {
	ModelID string `json:"model_id"`
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
}

// ActiveReservationView is the summary exposed even to non-admin
// subscribers.
type ActiveReservationView struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

// Snapshot is one sampling period's full admin view. Non-admin subscribers
// receive FilteredFor's reduced projection.
type Snapshot struct {
	Timestamp        time.Time               `json:"timestamp"`
	GPUs             []GPUMemory             `json:"gpus"`
	CPUPercent       float64                 `json:"cpu_percent"`
	CPUCores         int                     `json:"cpu_cores"`
	FilesystemFreeB  int64                   `json:"filesystem_free_bytes"`
	FilesystemUsedB  int64                   `json:"filesystem_used_bytes"`
	Gates            []GateSnapshot          `json:"gates"`
	Workers          []WorkerHealth          `json:"workers"`
	ActiveReservation *ActiveReservationView `json:"active_reservation,omitempty"`
}

// FilteredForNonAdmin returns the reduced view non-admin subscribers
// receive: GPU memory, the active-reservation summary, and the timestamp.
func (s Snapshot) FilteredForNonAdmin() Snapshot {
	return Snapshot{
		Timestamp:         s.Timestamp,
		GPUs:              s.GPUs,
		ActiveReservation: s.ActiveReservation,
	}
}
