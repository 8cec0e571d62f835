// Package gate implements per-backend slot accounting with a priority wait
// queue: try_acquire, acquire_or_queue, and a scoped Slot whose release
// wakes exactly one highest-priority waiter.
package gate

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
	"github.com/sovereignengine/gateway/internal/telemetry"
)

// Slot is a scoped concurrent-execution ticket. Release returns it to the
// gate and is safe to call more than once or concurrently; only the first
// call has effect.
type Slot struct {
	once    sync.Once
	release func()
}

// Release returns the slot. Non-blocking.
func (s *Slot) Release() {
	s.once.Do(s.release)
}

// Snapshot is a point-in-time view of a Gate's occupancy.
type Snapshot struct {
	MaxSlots int
	InFlight int
	Queued   int
	AvgWaitS float64
}

// waiter is one entry in the priority wait list. handoff carries the Slot
// once a release picks this waiter; it is buffered so the releaser never
// blocks even if the waiter has already given up. effectivePriority ages
// the waiter's base priority by waitWeight * elapsed wait, so a long-waiting
// low-usage-penalty caller can still overtake a fresher high-priority one.
type waiter struct {
	priority    float64
	waitWeight  float64
	enqueueTime time.Time
	handoff     chan *Slot
	index       int // heap index, maintained by container/heap; -1 once popped
}

func (w *waiter) effectivePriority(now time.Time) float64 {
	return w.priority + w.waitWeight*now.Sub(w.enqueueTime).Seconds()
}

// waiterHeap orders waiters by highest effective priority first (evaluated
// as of now, refreshed before every structural operation), ties broken by
// earliest enqueue time.
type waiterHeap struct {
	items []*waiter
	now   time.Time
}

func (h *waiterHeap) Len() int { return len(h.items) }
func (h *waiterHeap) Less(i, j int) bool {
	pi, pj := h.items[i].effectivePriority(h.now), h.items[j].effectivePriority(h.now)
	if pi != pj {
		return pi > pj
	}
	return h.items[i].enqueueTime.Before(h.items[j].enqueueTime)
}
func (h *waiterHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index, h.items[j].index = i, j
}
func (h *waiterHeap) Push(x any) {
	w := x.(*waiter)
	w.index = len(h.items)
	h.items = append(h.items, w)
}
func (h *waiterHeap) Pop() any {
	old := h.items
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	h.items = old[:n-1]
	return w
}

// refresh re-evaluates every waiter's effective priority as of now and
// restores the heap invariant. O(n log n) but n is the queue depth for a
// single model's gate, expected to be small.
func (h *waiterHeap) refresh(now time.Time) {
	h.now = now
	heap.Init(h)
}

// Gate accounts for one model's concurrent-request slots.
type Gate struct {
	modelID string

	mu        sync.Mutex
	maxSlots  int
	inFlight  int
	waiters   waiterHeap
	waitSum   time.Duration // cumulative wait time across every acquisition, queued or not
	waitCount int64
}

// New creates a Gate with the given slot ceiling, read from the worker
// secret's parallel-slots value and stable for the worker's lifetime.
func New(modelID string, maxSlots int) *Gate {
	g := &Gate{modelID: modelID, maxSlots: maxSlots}
	telemetry.SlotsMax.WithLabelValues(modelID).Set(float64(maxSlots))
	return g
}

// TryAcquire attempts to take a slot immediately without queueing.
func (g *Gate) TryAcquire() (*Slot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight >= g.maxSlots {
		return nil, false
	}
	g.inFlight++
	g.recordWaitLocked(0)
	g.observeLocked()
	return g.newSlot(), true
}

// AcquireOrQueue attempts an immediate acquire; on contention it enqueues
// with the given base priority and waits until either a slot is handed to
// it, ctx is cancelled, or timeout elapses — whichever comes first.
// waitWeight scales how fast the waiter's effective priority rises with
// elapsed queue time (spec's wait_weight * wait_seconds term), letting a
// long-waiting caller eventually overtake fresher, higher-priority arrivals.
func (g *Gate) AcquireOrQueue(ctx context.Context, priority, waitWeight float64, timeout time.Duration) (*Slot, error) {
	if slot, ok := g.TryAcquire(); ok {
		return slot, nil
	}

	w := &waiter{priority: priority, waitWeight: waitWeight, enqueueTime: time.Now(), handoff: make(chan *Slot, 1)}

	g.mu.Lock()
	g.waiters.refresh(time.Now())
	heap.Push(&g.waiters, w)
	g.observeLocked()
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot := <-w.handoff:
		g.recordWait(time.Since(w.enqueueTime))
		return slot, nil
	case <-ctx.Done():
		g.abandon(w)
		return nil, sovereignerr.New(sovereignerr.Internal, "request cancelled while queued")
	case <-timer.C:
		g.abandon(w)
		telemetry.QueueTimeoutsTotal.WithLabelValues(g.modelID).Inc()
		return nil, sovereignerr.NewQueueTimeout("timed out waiting for a free slot", timeout)
	}
}

// recordWait locks and accumulates a completed wait duration.
func (g *Gate) recordWait(d time.Duration) {
	g.mu.Lock()
	g.recordWaitLocked(d)
	g.mu.Unlock()
}

// recordWaitLocked accumulates a completed wait duration; caller holds mu.
func (g *Gate) recordWaitLocked(d time.Duration) {
	g.waitSum += d
	g.waitCount++
}

// abandon removes w from the queue. If a concurrent Release had already
// popped w and handed it a slot (a race against the deadline/cancel firing
// at the same instant), that slot is recovered from the buffered handoff
// channel and released again so the next waiter still gets woken.
func (g *Gate) abandon(w *waiter) {
	g.mu.Lock()
	if w.index >= 0 {
		g.waiters.refresh(time.Now())
		heap.Remove(&g.waiters, w.index)
		g.observeLocked()
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	select {
	case slot := <-w.handoff:
		slot.Release()
	default:
	}
}

// release returns the slot to the gate. If a waiter is queued, the slot is
// handed directly to the highest-priority one (inFlight never dips to
// reflect the gap); otherwise inFlight is decremented. Non-blocking.
func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.waiters.Len() > 0 {
		g.waiters.refresh(time.Now())
		w := heap.Pop(&g.waiters).(*waiter)
		w.handoff <- g.newSlot()
		g.observeLocked()
		return
	}
	g.inFlight--
	g.observeLocked()
}

func (g *Gate) newSlot() *Slot {
	return &Slot{release: g.release}
}

func (g *Gate) observeLocked() {
	telemetry.SlotsInFlight.WithLabelValues(g.modelID).Set(float64(g.inFlight))
	telemetry.QueueDepth.WithLabelValues(g.modelID).Set(float64(g.waiters.Len()))
}

// Snapshot returns the current occupancy and the average wait time across
// every acquisition (immediate or queued) observed so far.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	var avgWait float64
	if g.waitCount > 0 {
		avgWait = g.waitSum.Seconds() / float64(g.waitCount)
	}
	return Snapshot{MaxSlots: g.maxSlots, InFlight: g.inFlight, Queued: g.waiters.Len(), AvgWaitS: avgWait}
}
