package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pydigest/internal/pipeline"
	"pydigest/internal/storage"
	"pydigest/internal/targets"
	"pydigest/internal/types"
)

// Runner executes digest runs once or on an interval, persisting run
// statistics and handing posts to the configured targets.
type Runner struct {
	name      string
	pipeline  *pipeline.Pipeline
	store     storage.StorageInterface
	targets   []targets.Target
	interval  time.Duration
	retention time.Duration
	runOnce   bool
	mu        sync.Mutex
	running   bool
}

type Config struct {
	Name      string
	Pipeline  *pipeline.Pipeline
	Store     storage.StorageInterface
	Targets   []targets.Target
	Interval  time.Duration
	Retention time.Duration
	RunOnce   bool
}

func New(cfg Config) *Runner {
	if cfg.Interval == 0 {
		cfg.Interval = 168 * time.Hour
	}
	if cfg.Retention == 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}

	return &Runner{
		name:      cfg.Name,
		pipeline:  cfg.Pipeline,
		store:     cfg.Store,
		targets:   cfg.Targets,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		runOnce:   cfg.RunOnce,
	}
}

func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) Store() storage.StorageInterface {
	return r.store
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner already started")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for _, target := range r.targets {
		if err := target.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize target %s: %w", target.Name(), err)
		}
	}

	if r.runOnce {
		return r.executeRun(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.executeRun(ctx); err != nil {
		slog.Error("digest run failed", "runner", r.name, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.executeRun(ctx); err != nil {
				slog.Error("digest run failed", "runner", r.name, "error", err)
			}
		}
	}
}

func (r *Runner) executeRun(ctx context.Context) error {
	result, runErr := r.pipeline.Run(ctx)

	// Statistics are persisted for failed runs too; reporting needs to
	// tell an alarm from a quiet week.
	if result != nil && result.Run != nil {
		r.persist(ctx, result)
	}

	if runErr != nil {
		return runErr
	}

	for _, target := range r.targets {
		if err := target.Publish(ctx, result.Posts, result.Run); err != nil {
			slog.Error("target publish failed", "target", target.Name(), "error", err)
		}
	}

	return nil
}

func (r *Runner) persist(ctx context.Context, result *pipeline.Result) {
	if r.store == nil {
		return
	}

	runID, err := r.store.Runs().Insert(ctx, result.Run)
	if err != nil {
		slog.Error("failed to persist run", "error", err)
		return
	}

	if result.Run.FinalStage == types.StageDone && len(result.Posts) > 0 {
		if err := r.store.Posts().InsertAll(ctx, runID, result.Posts); err != nil {
			slog.Error("failed to persist posts", "run_id", runID, "error", err)
		}
	}

	if err := r.store.Posts().DeleteOlderThan(ctx, r.retention); err != nil {
		slog.Warn("failed to prune old posts", "error", err)
	}
}

func (r *Runner) Shutdown(ctx context.Context) error {
	var errs []error
	for _, target := range r.targets {
		if err := target.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("target %s shutdown error: %w", target.Name(), err))
		}
	}

	if r.store != nil {
		if err := r.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("storage shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
