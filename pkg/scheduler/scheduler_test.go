package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/principal"
	"github.com/sovereignengine/gateway/internal/usagelog"
	"github.com/sovereignengine/gateway/pkg/settings"
)

type fakeUsage struct {
	recentTokens int64
}

func (f fakeUsage) RecentTokens(ctx context.Context, userID uuid.UUID, windowMinutes int) (int64, error) {
	return f.recentTokens, nil
}

func (f fakeUsage) Log(e usagelog.Entry) {}

// TestPriorityMonotoneInUsage asserts the priority function's defining
// property: more recent usage never increases the computed priority.
func TestPriorityMonotoneInUsage(t *testing.T) {
	f := settings.Fairness{
		BasePriority:  100,
		UsageWeight:   10,
		UsageScale:    1000,
		WindowMinutes: 60,
	}
	p := principal.Principal{Kind: principal.Session, UserID: uuid.New()}

	usageLevels := []int64{0, 100, 1_000, 100_000, 1_000_000}
	var priorities []float64

	for _, tokens := range usageLevels {
		s := &Scheduler{usage: fakeUsage{recentTokens: tokens}}
		priority, err := s.priority(context.Background(), p, f)
		if err != nil {
			t.Fatalf("priority: %v", err)
		}
		priorities = append(priorities, priority)
	}

	for i := 1; i < len(priorities); i++ {
		if priorities[i] > priorities[i-1] {
			t.Fatalf("priority increased with more usage: %v", priorities)
		}
	}
}

func TestPriorityNonCallerKindsGetBasePriority(t *testing.T) {
	f := settings.Fairness{BasePriority: 42}
	s := &Scheduler{usage: fakeUsage{recentTokens: 1_000_000}}

	for _, kind := range []principal.Kind{principal.Internal, principal.Meta} {
		p := principal.Principal{Kind: kind}
		priority, err := s.priority(context.Background(), p, f)
		if err != nil {
			t.Fatalf("priority: %v", err)
		}
		if priority != f.BasePriority {
			t.Errorf("kind %v priority = %v, want base %v (unaffected by usage)", kind, priority, f.BasePriority)
		}
	}
}
