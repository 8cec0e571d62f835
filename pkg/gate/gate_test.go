package gate

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireRespectsMaxSlots(t *testing.T) {
	g := New("model-a", 1)

	slot, ok := g.TryAcquire()
	if !ok {
		t.Fatal("expected first TryAcquire to succeed")
	}

	if _, ok := g.TryAcquire(); ok {
		t.Fatal("expected second TryAcquire to fail while slot is held")
	}

	slot.Release()

	if _, ok := g.TryAcquire(); !ok {
		t.Fatal("expected TryAcquire to succeed after release")
	}
}

func TestAcquireOrQueueWakesOnRelease(t *testing.T) {
	g := New("model-a", 1)

	held, _ := g.TryAcquire()

	done := make(chan struct{})
	var gotSlot *Slot
	go func() {
		slot, err := g.AcquireOrQueue(context.Background(), 100, 0, time.Second)
		if err != nil {
			t.Errorf("AcquireOrQueue: %v", err)
		}
		gotSlot = slot
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine enqueue
	if snap := g.Snapshot(); snap.Queued != 1 {
		t.Fatalf("Queued = %d, want 1", snap.Queued)
	}

	held.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}

	if gotSlot == nil {
		t.Fatal("expected a slot to be handed to the waiter")
	}
}

func TestAcquireOrQueueTimesOut(t *testing.T) {
	g := New("model-a", 1)
	held, _ := g.TryAcquire()
	defer held.Release()

	_, err := g.AcquireOrQueue(context.Background(), 100, 0, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	if snap := g.Snapshot(); snap.Queued != 0 {
		t.Fatalf("Queued = %d after timeout, want 0", snap.Queued)
	}
}

// TestFairStarvationAvoidance mirrors the spec scenario: a heavy-usage
// caller queued first is still dequeued after a light-usage caller that
// arrives later, because the light caller's priority score is higher.
func TestFairStarvationAvoidance(t *testing.T) {
	g := New("model-a", 1)
	held, _ := g.TryAcquire()

	order := make(chan string, 3)

	// A has heavy recent usage -> lower priority score, queued first.
	go func() {
		if _, err := g.AcquireOrQueue(context.Background(), 10, 0, time.Second); err == nil {
			order <- "A"
		}
	}()
	time.Sleep(10 * time.Millisecond)

	// B has low recent usage -> higher priority score, queued after A.
	go func() {
		if _, err := g.AcquireOrQueue(context.Background(), 90, 0, time.Second); err == nil {
			order <- "B"
		}
	}()
	time.Sleep(10 * time.Millisecond)

	held.Release()

	select {
	case first := <-order:
		if first != "B" {
			t.Fatalf("first dequeued = %q, want B (higher priority)", first)
		}
	case <-time.After(time.Second):
		t.Fatal("no waiter woken")
	}
}

// TestWaitWeightAgingOvertakesHigherPriority mirrors the spec's
// wait_weight * wait_seconds term: a lower-priority waiter queued early
// enough should still be dequeued ahead of a higher-priority latecomer once
// it has aged past the gap.
func TestWaitWeightAgingOvertakesHigherPriority(t *testing.T) {
	g := New("model-a", 1)
	held, _ := g.TryAcquire()

	order := make(chan string, 2)

	// A has a low base priority but a large wait_weight, so 30ms of aging
	// (0.03s * 2000 = 60 added priority) overtakes B's +20 base-priority edge.
	go func() {
		if _, err := g.AcquireOrQueue(context.Background(), 10, 2000, time.Second); err == nil {
			order <- "A"
		}
	}()
	time.Sleep(30 * time.Millisecond)

	// B arrives much later with a higher base priority and no time to age.
	go func() {
		if _, err := g.AcquireOrQueue(context.Background(), 30, 2000, time.Second); err == nil {
			order <- "B"
		}
	}()
	time.Sleep(10 * time.Millisecond)

	held.Release()

	select {
	case first := <-order:
		if first != "A" {
			t.Fatalf("first dequeued = %q, want A (aged past B's base-priority edge)", first)
		}
	case <-time.After(time.Second):
		t.Fatal("no waiter woken")
	}
}

func TestSnapshotReportsAverageWait(t *testing.T) {
	g := New("model-a", 1)

	if snap := g.Snapshot(); snap.AvgWaitS != 0 {
		t.Fatalf("AvgWaitS on a fresh gate = %v, want 0", snap.AvgWaitS)
	}

	held, _ := g.TryAcquire()

	done := make(chan struct{})
	go func() {
		slot, err := g.AcquireOrQueue(context.Background(), 100, 0, time.Second)
		if err != nil {
			t.Errorf("AcquireOrQueue: %v", err)
		}
		slot.Release()
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	held.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}

	snap := g.Snapshot()
	if snap.AvgWaitS <= 0 {
		t.Fatalf("AvgWaitS = %v, want > 0 after a waiter queued", snap.AvgWaitS)
	}
}
