package broadcaster

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSnapshotFilteredForNonAdmin(t *testing.T) {
	now := time.Now()
	full := Snapshot{
		Timestamp:       now,
		GPUs:            []GPUMemory{{Index: 0, TotalBytes: 100, UsedBytes: 40}},
		CPUPercent:      0.5,
		CPUCores:        8,
		FilesystemFreeB: 1000,
		FilesystemUsedB: 2000,
		Gates:           []GateSnapshot{{ModelID: "m1", MaxSlots: 2, InFlight: 1}},
		Workers:         []WorkerHealth{{ModelID: "m1", Healthy: true}},
		ActiveReservation: &ActiveReservationView{
			ID:     uuid.New(),
			UserID: uuid.New(),
		},
	}

	filtered := full.FilteredForNonAdmin()

	if !filtered.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", filtered.Timestamp, now)
	}
	if len(filtered.GPUs) != 1 {
		t.Errorf("GPUs = %v, want 1 entry", filtered.GPUs)
	}
	if filtered.ActiveReservation == nil || filtered.ActiveReservation.ID != full.ActiveReservation.ID {
		t.Errorf("ActiveReservation not carried through")
	}
	if filtered.Gates != nil {
		t.Errorf("Gates = %v, want nil (admin-only)", filtered.Gates)
	}
	if filtered.Workers != nil {
		t.Errorf("Workers = %v, want nil (admin-only)", filtered.Workers)
	}
	if filtered.CPUPercent != 0 || filtered.CPUCores != 0 {
		t.Errorf("host metrics leaked into non-admin view: %+v", filtered)
	}
	if filtered.FilesystemFreeB != 0 || filtered.FilesystemUsedB != 0 {
		t.Errorf("filesystem metrics leaked into non-admin view: %+v", filtered)
	}
}

func TestBrokerSubscribePublishUnsubscribe(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe()
	if got := b.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	b.Publish(Event{Kind: EventMetrics})

	select {
	case evt := <-sub:
		if evt.Kind != EventMetrics {
			t.Errorf("Kind = %v, want %v", evt.Kind, EventMetrics)
		}
		if evt.Lagged {
			t.Errorf("Lagged = true on first delivery, want false")
		}
	default:
		t.Fatal("expected event to be immediately available")
	}

	b.Unsubscribe(sub)
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount() after unsubscribe = %d, want 0", got)
	}

	if _, ok := <-sub; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestBrokerPublishMarksLaggedWhenFull(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()

	for i := 0; i < subscriberBuffer+2; i++ {
		b.Publish(Event{Kind: EventMetrics})
	}

	var lastLagged bool
drain:
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				break drain
			}
			lastLagged = evt.Lagged
		default:
			break drain
		}
	}

	if !lastLagged {
		t.Error("expected the most recent delivered event to be marked lagged after overflow")
	}
}
