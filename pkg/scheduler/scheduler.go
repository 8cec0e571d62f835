// Package scheduler composes model resolution, the priority wait queue,
// and the worker proxy into the gateway's single hot-path operation:
// dispatch.
package scheduler

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/principal"
	"github.com/sovereignengine/gateway/internal/sovereignerr"
	"github.com/sovereignengine/gateway/internal/usagelog"
	"github.com/sovereignengine/gateway/pkg/gate"
	"github.com/sovereignengine/gateway/pkg/model"
	"github.com/sovereignengine/gateway/pkg/reservation"
	"github.com/sovereignengine/gateway/pkg/settings"
)

// UsageTracker is the narrow view of internal/usagelog the scheduler needs:
// a recent-usage read for the priority penalty and an async write on
// completion.
type UsageTracker interface {
	RecentTokens(ctx context.Context, userID uuid.UUID, windowMinutes int) (int64, error)
	Log(e usagelog.Entry)
}

// EndpointResolver locates a running worker's address and bearer key.
type EndpointResolver interface {
	Endpoint(ctx context.Context, modelID uuid.UUID) (addr, apiKey string, err error)
}

// Scheduler composes the model resolver, per-model gates, fairness
// settings, the active-reservation cell, and worker endpoints into the
// dispatch operation.
type Scheduler struct {
	resolver  *model.Resolver
	gates     *gate.Manager
	fairness  *settings.Reader
	usage     UsageTracker
	endpoints EndpointResolver
	active    *reservation.ActiveCell
}

// New composes a Scheduler from its collaborators.
func New(resolver *model.Resolver, gates *gate.Manager, fairness *settings.Reader, usage UsageTracker, endpoints EndpointResolver, active *reservation.ActiveCell) *Scheduler {
	return &Scheduler{
		resolver:  resolver,
		gates:     gates,
		fairness:  fairness,
		usage:     usage,
		endpoints: endpoints,
		active:    active,
	}
}

// Resolved is the outcome of steps 1-4 of dispatch: a loaded model, the
// worker endpoint to forward to, and the acquired slot. The caller
// (the HTTP handler) is responsible for releasing Slot and for logging
// usage once the proxied response completes.
type Resolved struct {
	Model    model.Model
	Addr     string
	APIKey   string
	Slot     *gate.Slot
	Priority float64
}

// Resolve runs dispatch steps 1-4: resolve the model, enforce the
// reservation gate, compute priority, and acquire or queue a slot. The
// caller performs the actual proxy I/O (step 5) and must call
// Resolved.Slot.Release() when done (step 6) and log usage itself (step 7).
func (s *Scheduler) Resolve(ctx context.Context, p principal.Principal, requestModel string) (Resolved, error) {
	m, err := s.resolver.Resolve(ctx, p, requestModel)
	if err != nil {
		return Resolved{}, err
	}

	if active, ok := s.active.Get(); ok {
		if !p.BypassesReservationGate() && !p.IsHolder(active.UserID) {
			return Resolved{}, sovereignerr.New(sovereignerr.RateMonopolized, "the fleet is currently reserved by another caller")
		}
	}

	fairness := s.fairness.Fairness()
	priority, err := s.priority(ctx, p, fairness)
	if err != nil {
		return Resolved{}, err
	}

	g := s.gates.GetOrCreate(m.ID.String(), 0)

	slot, ok := g.TryAcquire()
	if !ok {
		slot, err = g.AcquireOrQueue(ctx, priority, fairness.WaitWeight, fairness.QueueTimeout())
		if err != nil {
			return Resolved{}, err
		}
	}

	addr, apiKey, err := s.endpoints.Endpoint(ctx, m.ID)
	if err != nil {
		slot.Release()
		return Resolved{}, err
	}

	return Resolved{Model: m, Addr: addr, APIKey: apiKey, Slot: slot, Priority: priority}, nil
}

// priority computes the base logarithmic-fairness priority score for p
// against its recent usage; wait_weight * wait_seconds is added on top of
// this dynamically while a request sits in the gate's wait queue (see
// gate.Gate's effectivePriority), so a caller's priority keeps rising the
// longer it waits instead of being fixed at enqueue time.
func (s *Scheduler) priority(ctx context.Context, p principal.Principal, f settings.Fairness) (float64, error) {
	if p.Kind != principal.Session && p.Kind != principal.API {
		return f.BasePriority, nil
	}

	recent, err := s.usage.RecentTokens(ctx, p.UserID, f.WindowMinutes)
	if err != nil {
		return 0, err
	}

	return f.BasePriority - f.UsageWeight*math.Log(1+float64(recent)/f.UsageScale), nil
}

// LogUsage spawns a best-effort usage record write; failures never affect
// the response already sent to the caller.
func (s *Scheduler) LogUsage(e usagelog.Entry) {
	s.usage.Log(e)
}
