package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sovereignengine/gateway/internal/config"
	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/platform"
	"github.com/sovereignengine/gateway/internal/telemetry"
	"github.com/sovereignengine/gateway/internal/usagelog"
	"github.com/sovereignengine/gateway/pkg/broadcaster"
	"github.com/sovereignengine/gateway/pkg/gate"
	"github.com/sovereignengine/gateway/pkg/model"
	"github.com/sovereignengine/gateway/pkg/reservation"
	"github.com/sovereignengine/gateway/pkg/scheduler"
	"github.com/sovereignengine/gateway/pkg/settings"
	"github.com/sovereignengine/gateway/pkg/supervisor"
	"github.com/sovereignengine/gateway/pkg/token"
	"github.com/sovereignengine/gateway/pkg/usage"
)

// Run is the main application entry point: it reads config, connects to
// infrastructure, wires every domain package together, and serves HTTP
// until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting sovereign-engine", "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	healthTimeout, err := time.ParseDuration(cfg.WorkerHealthTimeout)
	if err != nil {
		return fmt.Errorf("parsing worker health timeout %q: %w", cfg.WorkerHealthTimeout, err)
	}
	stopGrace, err := time.ParseDuration(cfg.WorkerStopGrace)
	if err != nil {
		return fmt.Errorf("parsing worker stop grace %q: %w", cfg.WorkerStopGrace, err)
	}

	// --- Core domain stores/services ---

	modelStore := model.NewStore(db)
	modelResolver := model.NewResolver(modelStore)

	// eg supervises every long-lived background loop: if one dies outside
	// of ctx cancellation, egCtx is cancelled so the rest wind down with it
	// instead of leaving the process in a partially-degraded state.
	eg, egCtx := errgroup.WithContext(ctx)

	settingsStore := settings.NewStore(db)
	fairness, err := settings.NewReader(ctx, settingsStore, logger)
	if err != nil {
		return fmt.Errorf("initializing settings reader: %w", err)
	}
	eg.Go(func() error {
		if err := fairness.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("settings reader: %w", err)
		}
		return nil
	})

	gates := gate.NewManager()

	usageStore := usagelog.NewStore(db)
	usageWriter := usagelog.NewWriter(usageStore, logger)
	usageWriter.Start(ctx)
	defer usageWriter.Close()
	usageFacade := usagelog.NewFacade(usageStore, usageWriter)

	reservationStore := reservation.NewStore(db)
	reservationEngine := reservation.NewEngine(reservationStore, rdb, logger)
	if err := reservationEngine.Recover(ctx); err != nil {
		return fmt.Errorf("recovering reservation state: %w", err)
	}
	eg.Go(func() error {
		if err := reservationEngine.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reservation engine: %w", err)
		}
		return nil
	})

	runtime, err := supervisor.NewRuntime(cfg.ContainerdSocket, cfg.ContainerdNamespace)
	if err != nil {
		return fmt.Errorf("connecting to containerd: %w", err)
	}
	defer runtime.Close()

	workerStore := supervisor.NewStore(db)
	sup := supervisor.New(supervisor.Config{
		Image:         cfg.WorkerImage,
		ModelRoot:     cfg.ModelStorageRoot,
		UIDMin:        cfg.WorkerUIDMin,
		UIDMax:        cfg.WorkerUIDMax,
		HealthTimeout: healthTimeout,
		StopGrace:     stopGrace,
	}, workerStore, modelStore, runtime, gates, logger)
	if err := sup.Recover(ctx); err != nil {
		return fmt.Errorf("recovering worker supervisor state: %w", err)
	}

	sched := scheduler.New(modelResolver, gates, fairness, usageFacade, sup, reservationEngine.Active())

	broker := broadcaster.NewBroker()
	sampler := broadcaster.NewSampler(broker, gates, reservationEngine.Active(), broadcaster.NewAMDUnifiedMemoryReader(), supervisorHealth{sup}, cfg.ModelStorageRoot, logger)
	eg.Go(func() error {
		if err := sampler.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("metrics sampler: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := sampler.RelayReservationsChanged(egCtx, rdb); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reservation change relay: %w", err)
		}
		return nil
	})

	tokenService := token.NewService(db, logger)
	if cfg.AdminBootstrapToken != "" {
		if err := tokenService.Bootstrap(ctx, uuid.Nil, cfg.AdminBootstrapToken); err != nil {
			return fmt.Errorf("bootstrapping admin token: %w", err)
		}
		logger.Info("admin bootstrap token active")
	}
	authenticator := token.NewAuthenticator(tokenService, nil)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, db, rdb, metricsReg, authenticator.Middleware)

	// Every /api route requires a resolved Principal; admin-only groups
	// layer token.RequireAdmin on top below.
	srv.APIRouter.Use(token.RequireAuth)

	// OpenAI-compatible model listing and dispatch, served at the root /v1
	// prefix (outside /api) with the same authentication.
	srv.Router.Route("/v1", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		r.Use(token.RequireAuth)
		r.Mount("/models", model.NewHandler(logger, db).Routes())
		r.Mount("/", scheduler.NewHandler(logger, sched).Routes())
	})

	// User-facing management endpoints.
	srv.APIRouter.Mount("/user/tokens", token.NewHandler(logger, db).Routes())
	srv.APIRouter.Mount("/user/usage", usage.NewHandler(logger, db).Routes())
	srv.APIRouter.Mount("/user/reservations", reservation.NewHandler(logger, reservationEngine).UserRoutes())
	srv.APIRouter.Mount("/user/events", broadcaster.NewHandler(logger, broker).Routes())

	// Admin endpoints.
	srv.APIRouter.Route("/admin", func(r chi.Router) {
		r.Use(token.RequireAdmin)
		r.Mount("/reservations", reservation.NewHandler(logger, reservationEngine).AdminRoutes())
		r.Mount("/containers", supervisor.NewHandler(logger, sup).Routes())
		r.Mount("/settings", settings.NewHandler(logger, fairness).Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming completions can run far longer than a fixed write deadline
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	egErrCh := make(chan error, 1)
	go func() {
		if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			egErrCh <- err
		}
		close(egErrCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
	case err := <-egErrCh:
		if err != nil {
			logger.Error("a background loop failed, shutting down api server", "error", err)
		}
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// supervisorHealth adapts *supervisor.Supervisor's uuid-keyed Health to the
// string-keyed broadcaster.HealthChecker view, since the gate manager (and
// therefore the sampler's iteration) keys models by their string form.
type supervisorHealth struct {
	sup *supervisor.Supervisor
}

func (h supervisorHealth) Health(ctx context.Context, modelID string) (bool, string) {
	id, err := uuid.Parse(modelID)
	if err != nil {
		return false, "invalid model id"
	}
	health, err := h.sup.Health(ctx, id)
	if err != nil {
		return false, err.Error()
	}
	return health.Healthy, health.Reason
}
