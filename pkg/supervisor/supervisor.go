package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
	"github.com/sovereignengine/gateway/internal/telemetry"
	"github.com/sovereignengine/gateway/pkg/gate"
	"github.com/sovereignengine/gateway/pkg/model"
)

// Config holds the cluster-wide parameters a Supervisor needs beyond the
// per-call model arguments.
type Config struct {
	Image         string
	ModelRoot     string
	UIDMin        int
	UIDMax        int
	HealthTimeout time.Duration
	StopGrace     time.Duration
}

// Supervisor starts, stops, health-checks, and lists inference worker
// containers, and keeps the concurrency gate manager's registry in sync
// with which workers are actually running.
type Supervisor struct {
	cfg        Config
	store      *Store
	modelStore *model.Store
	runtime    *Runtime
	gates      *gate.Manager
	logger     *slog.Logger
	http       *http.Client
}

// New creates a Supervisor. Call Recover once at startup to reconstruct
// gates for workers that survived a coordinator restart. modelStore is
// updated by Start/Stop so a model's load_state always reflects whether
// the supervisor actually has a worker running for it — load state
// transitions only through the supervisor.
func New(cfg Config, store *Store, modelStore *model.Store, runtime *Runtime, gates *gate.Manager, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		store:      store,
		modelStore: modelStore,
		runtime:    runtime,
		gates:      gates,
		logger:     logger,
		http:       &http.Client{Timeout: cfg.HealthTimeout},
	}
}

// Recover rebuilds the gate registry from persisted worker secrets with
// in_flight = 0 — the core assumes best-effort recovery of in-flight
// counts, not exact-once.
func (s *Supervisor) Recover(ctx context.Context) error {
	workers, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing worker secrets: %w", err)
	}
	for _, w := range workers {
		s.gates.GetOrCreate(w.ModelID.String(), w.MaxSlots)
	}
	return nil
}

// Start allocates a UID, creates the isolated-network container, persists
// its secret, registers its gate, and flips the model to loaded. maxSlots
// sizes the concurrency gate.
func (s *Supervisor) Start(ctx context.Context, modelID uuid.UUID, networkNSFD, modelFilename string, maxSlots int) (Worker, error) {
	taken, err := s.store.AllocatedUIDs(ctx)
	if err != nil {
		return Worker{}, fmt.Errorf("loading allocated UIDs: %w", err)
	}
	uid, err := allocateUID(s.cfg.UIDMin, s.cfg.UIDMax, taken)
	if err != nil {
		return Worker{}, err
	}

	containerID := "sovereign-worker-" + modelID.String()
	hostname := containerID
	w, err := s.store.Create(ctx, modelID, containerID, uid, maxSlots, hostname)
	if err != nil {
		return Worker{}, fmt.Errorf("persisting worker secret: %w", err)
	}

	if err := s.modelStore.SetLoadState(ctx, modelID, model.LoadStateLoading); err != nil {
		_ = s.store.Delete(ctx, modelID)
		return Worker{}, fmt.Errorf("marking model loading: %w", err)
	}

	spec := ContainerSpec{
		ID:          containerID,
		Image:       s.cfg.Image,
		UID:         uid,
		Env:         []string{"WORKER_API_KEY=" + w.APIKey, "WORKER_MODEL_FILE=" + modelFilename},
		ModelMount:  s.cfg.ModelRoot,
		NetworkNSFD: networkNSFD,
	}

	if err := s.runtime.CreateAndStart(ctx, spec); err != nil {
		_ = s.store.Delete(ctx, modelID)
		s.revertToUnloaded(ctx, modelID)
		return Worker{}, err
	}

	if err := s.modelStore.SetLoadState(ctx, modelID, model.LoadStateLoaded); err != nil {
		return Worker{}, fmt.Errorf("marking model loaded: %w", err)
	}

	s.gates.GetOrCreate(modelID.String(), maxSlots)
	telemetry.WorkerStartsTotal.WithLabelValues("success").Inc()
	telemetry.WorkersRunning.Inc()
	return w, nil
}

// revertToUnloaded is a best-effort rollback of the load-state flip made at
// the start of Start; a failure here is logged, not propagated, since the
// caller already has a more specific error to return.
func (s *Supervisor) revertToUnloaded(ctx context.Context, modelID uuid.UUID) {
	if err := s.modelStore.SetLoadState(ctx, modelID, model.LoadStateUnloaded); err != nil {
		s.logger.Error("reverting model load state after failed start", "model_id", modelID, "error", err)
	}
}

// Stop tears down the worker container for modelID, removes its secret and
// gate, and flips the model back to unloaded.
func (s *Supervisor) Stop(ctx context.Context, modelID uuid.UUID) error {
	w, err := s.store.GetByModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := s.runtime.Stop(ctx, w.ContainerID, s.cfg.StopGrace); err != nil {
		return fmt.Errorf("stopping worker container: %w", err)
	}
	if err := s.store.Delete(ctx, modelID); err != nil {
		return fmt.Errorf("deleting worker secret: %w", err)
	}
	if err := s.modelStore.SetLoadState(ctx, modelID, model.LoadStateUnloaded); err != nil {
		return fmt.Errorf("marking model unloaded: %w", err)
	}
	s.gates.Drop(modelID.String())
	telemetry.WorkerStopsTotal.WithLabelValues("success").Inc()
	telemetry.WorkersRunning.Dec()
	return nil
}

// Health probes the worker's /health endpoint with the configured timeout.
func (s *Supervisor) Health(ctx context.Context, modelID uuid.UUID) (Health, error) {
	w, err := s.store.GetByModel(ctx, modelID)
	if err != nil {
		return Health{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(w)+"/health", nil)
	if err != nil {
		return Health{}, err
	}
	req.Header.Set("Authorization", "Bearer "+w.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return Health{Healthy: false, Reason: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{Healthy: false, Reason: fmt.Sprintf("health probe returned %d", resp.StatusCode)}, nil
	}
	return Health{Healthy: true}, nil
}

// List enumerates every managed container by delegating to the runtime.
func (s *Supervisor) List(ctx context.Context) ([]string, error) {
	return s.runtime.List(ctx)
}

// Endpoint returns the worker's address and API key for the scheduler to
// forward a dispatch to.
func (s *Supervisor) Endpoint(ctx context.Context, modelID uuid.UUID) (string, string, error) {
	w, err := s.store.GetByModel(ctx, modelID)
	if err != nil {
		if err == ErrNotFound {
			return "", "", sovereignerr.New(sovereignerr.Unavailable, "no worker is running for this model")
		}
		return "", "", err
	}
	return s.endpoint(w), w.APIKey, nil
}

func (s *Supervisor) endpoint(w Worker) string {
	return fmt.Sprintf("http://%s:%d", w.Hostname, workerPort)
}
