package broadcaster

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/sovereignengine/gateway/internal/telemetry"
	"github.com/sovereignengine/gateway/pkg/gate"
	"github.com/sovereignengine/gateway/pkg/reservation"
)

// reservationsChangedChannel mirrors the channel name the reservation
// engine publishes state transitions to.
const reservationsChangedChannel = "sovereign:reservations:changed"

const sampleInterval = 2 * time.Second

// GPUReader abstracts the host-specific VRAM/GTT query so the sampler does
// not depend on a particular vendor's tooling; AMD unified-memory hardware
// implementations sum the VRAM and GTT pools per-GPU.
type GPUReader interface {
	Read() ([]GPUMemory, error)
}

// HealthChecker is the narrow supervisor view the sampler needs.
type HealthChecker interface {
	Health(ctx context.Context, modelID string) (healthy bool, reason string)
}

// Sampler periodically samples host and fleet state and publishes it to a
// Broker.
type Sampler struct {
	broker    *Broker
	gates     *gate.Manager
	active    *reservation.ActiveCell
	gpus      GPUReader
	health    HealthChecker
	modelRoot string
	logger    *slog.Logger
}

func NewSampler(broker *Broker, gates *gate.Manager, active *reservation.ActiveCell, gpus GPUReader, health HealthChecker, modelRoot string, logger *slog.Logger) *Sampler {
	return &Sampler{broker: broker, gates: gates, active: active, gpus: gpus, health: health, modelRoot: modelRoot, logger: logger}
}

// Run samples on a fixed interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.sample(ctx)
			s.broker.Publish(Event{Kind: EventMetrics, Payload: snap})
		}
	}
}

// RelayReservationsChanged subscribes to the reservation engine's Redis
// pub/sub channel and relays each transition to the broker's subscribers as
// a zero-payload reservations_changed event. Blocks until ctx is cancelled.
func (s *Sampler) RelayReservationsChanged(ctx context.Context, rdb *redis.Client) error {
	pubsub := rdb.Subscribe(ctx, reservationsChangedChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			s.broker.Publish(Event{Kind: EventReservationsChanged})
		}
	}
}

func (s *Sampler) sample(ctx context.Context) Snapshot {
	now := time.Now()
	snap := Snapshot{Timestamp: now}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0] / 100
		telemetry.HostCPUUtilization.Set(snap.CPUPercent)
	} else if err != nil {
		s.logger.Warn("sampling cpu", "error", err)
	}
	if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPUCores = counts
	}

	if usage, err := disk.UsageWithContext(ctx, s.modelRoot); err == nil {
		snap.FilesystemFreeB = int64(usage.Free)
		snap.FilesystemUsedB = int64(usage.Used)
		telemetry.HostFilesystemFreeBytes.WithLabelValues(s.modelRoot).Set(float64(usage.Free))
	} else {
		s.logger.Warn("sampling filesystem usage", "path", s.modelRoot, "error", err)
	}

	if s.gpus != nil {
		if gpus, err := s.gpus.Read(); err == nil {
			snap.GPUs = gpus
		} else {
			s.logger.Warn("sampling gpu memory", "error", err)
		}
	}

	for modelID, gs := range s.gates.Snapshots() {
		snap.Gates = append(snap.Gates, GateSnapshot{
			ModelID:  modelID,
			MaxSlots: gs.MaxSlots,
			InFlight: gs.InFlight,
			Queued:   gs.Queued,
			AvgWaitS: gs.AvgWaitS,
		})
		if s.health != nil {
			healthy, reason := s.health.Health(ctx, modelID)
			snap.Workers = append(snap.Workers, WorkerHealth{ModelID: modelID, Healthy: healthy, Reason: reason})
		}
	}

	if active, ok := s.active.Get(); ok {
		snap.ActiveReservation = &ActiveReservationView{ID: active.ID, UserID: active.UserID}
	}

	return snap
}
