// Package daemon assembles the long-running service: HTTP intake, the job
// queue, the orchestrator and scheduled store maintenance.
package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/idempotency"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
	"git.home.luguber.info/inful/pagesmith/internal/queue"
	"git.home.luguber.info/inful/pagesmith/internal/server/httpserver"
)

const shutdownTimeout = 30 * time.Second

// Daemon represents the main service.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	store     idempotency.Store
	orch      *orchestrator.Orchestrator
	queue     *queue.Queue
	server    *httpserver.Server
	scheduler *Scheduler
}

// runtime joins the orchestrator and queue for the HTTP layer.
type runtime struct {
	*orchestrator.Orchestrator
	*queue.Queue
}

// New wires every component from configuration. Components overrides
// replace the collaborators built from cfg.
func New(ctx context.Context, cfg *config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		recorder    metrics.Recorder = metrics.NoopRecorder{}
		metricsOpts httpserver.Options
	)
	if cfg.Monitoring.Metrics.Enabled {
		reg := metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		metricsOpts.MetricsHandler = metrics.HTTPHandler(reg)
		metricsOpts.MetricsPath = cfg.Monitoring.Metrics.Path
	}

	orch, store, err := BuildPipeline(ctx, cfg, c, recorder, logger)
	if err != nil {
		return nil, err
	}

	q := queue.New(cfg.Queue.Size, cfg.Queue.Workers, cfg.Queue.JobTimeoutDuration(), orch,
		queue.WithRecorder(recorder), queue.WithLogger(logger))
	orch.Enqueuer = q

	sched, err := NewScheduler(logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if interval := cfg.Idempotency.PruneIntervalDuration(); interval > 0 {
		pruner, ok := store.(idempotency.Pruner)
		if !ok {
			logger.Warn("Idempotency store cannot prune; scheduled pruning disabled",
				logfields.Backend(string(cfg.Idempotency.Backend)))
		} else if _, err := sched.SchedulePrune(interval, cfg.Idempotency.RetentionDuration(),
			cfg.Idempotency.PendingTTLDuration(), pruner); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	start := time.Now()
	metricsOpts.Logger = logger
	metricsOpts.StartTime = start
	srv := httpserver.New(cfg.Server, runtime{orch, q}, metricsOpts)

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		startTime: start,
		store:     store,
		orch:      orch,
		queue:     q,
		server:    srv,
		scheduler: sched,
	}, nil
}

// Server exposes the HTTP server, mainly for its bound address.
func (d *Daemon) Server() *httpserver.Server { return d.server }

// Run serves until ctx is canceled or the HTTP server fails, then shuts
// everything down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.server.Start(ctx); err != nil {
		_ = d.store.Close()
		return err
	}
	d.queue.Start(ctx)
	d.scheduler.Start()
	d.logger.Info("pagesmith daemon running",
		slog.String("listen", d.server.Addr().String()),
		slog.Int("workers", d.cfg.Queue.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err, ok := <-d.server.Done(); ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return d.shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

func (d *Daemon) shutdown(parent context.Context) error {
	d.logger.Info("Shutting down pagesmith daemon")
	ctx, cancel := context.WithTimeout(parent, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	d.queue.Stop(ctx)
	if err := d.scheduler.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	d.logger.Info("pagesmith daemon stopped", logfields.DurationMS(float64(time.Since(d.startTime).Milliseconds())))
	return nil
}
