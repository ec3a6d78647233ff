package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options configures one Engine. Zero values are not useful; callers build
// Options from the validated configuration.
type Options struct {
	Strategy        ConflictStrategy
	ConflictWindow  time.Duration
	SyncCompleted   bool
	CompletedMaxAge time.Duration
	DedupeRepeating bool
	DryRun          bool
}

// Engine runs the sync pipeline: category reconciliation, task loading,
// deduplication, pairing, conflict resolution, and action execution. It is
// strictly single-flight; callers serialize runs with the process lock.
type Engine struct {
	device DeviceAdapter
	host   HostAdapter
	store  Store
	logger *slog.Logger

	resolver *resolver
	opts     Options
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(device DeviceAdapter, host HostAdapter, store Store, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		device: device,
		host:   host,
		store:  store,
		logger: logger,
		resolver: &resolver{
			strategy: opts.Strategy,
			window:   opts.ConflictWindow,
			logger:   logger,
		},
		opts: opts,
	}
}

// Run performs one full sync pass and returns its summary. Per-action
// failures are collected in Result.Errors and do not abort the run;
// the error return covers failures that make the whole pass impossible.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{StartedAt: time.Now(), DryRun: e.opts.DryRun}

	e.logger.Info("sync starting",
		"strategy", string(e.opts.Strategy),
		"dry_run", e.opts.DryRun,
	)

	translator, err := e.categories(ctx)
	if err != nil {
		return nil, err
	}

	hostTasks, err := e.host.ListReminders(ctx, e.opts.SyncCompleted)
	if err != nil {
		return nil, fmt.Errorf("sync: listing host reminders: %w", err)
	}

	deviceTasks, err := e.device.ListTasks(ctx, "", e.opts.SyncCompleted)
	if err != nil {
		return nil, fmt.Errorf("sync: listing device tasks: %w", err)
	}

	e.logger.Info("loaded tasks",
		slog.Int("host", len(hostTasks)),
		slog.Int("device", len(deviceTasks)),
	)

	// Hashing and pairing work on canonical category names so a pure case
	// difference between the stores never reads as a content change.
	for _, t := range hostTasks {
		t.Category = translator.Canonical(t.Category)
	}
	for _, t := range deviceTasks {
		t.Category = translator.Canonical(t.Category)
	}

	if e.opts.DedupeRepeating {
		var removed int
		hostTasks, removed = dedupeHostTasks(hostTasks, e.logger)
		res.Deduped = removed
	}

	actions, err := e.planActions(ctx, hostTasks, deviceTasks, res)
	if err != nil {
		return nil, err
	}

	for _, action := range actions {
		e.execute(ctx, action, translator, res)
	}

	res.CompletedAt = time.Now()

	if !e.opts.DryRun {
		details := fmt.Sprintf(
			`{"actions":%d,"conflicts":%d,"errors":%d,"duration_ms":%d}`,
			res.TotalActions(), res.ConflictsResolved, len(res.Errors),
			res.CompletedAt.Sub(res.StartedAt).Milliseconds(),
		)
		if err := e.store.LogAction(ctx, "sync_complete", "", details); err != nil {
			e.logger.Warn("recording sync completion failed", "error", err)
		}
	}

	e.logger.Info("sync finished",
		"actions", res.TotalActions(),
		"conflicts", res.ConflictsResolved,
		"unchanged", res.NoChange,
		"errors", len(res.Errors),
		"duration", res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)

	return res, nil
}

// categories reconciles the category namespace, or, on a dry run, builds a
// read-only translator from the existing mappings without touching either
// store.
func (e *Engine) categories(ctx context.Context) (*categoryTranslator, error) {
	if !e.opts.DryRun {
		return e.reconcileCategories(ctx)
	}

	e.logger.Info("dry run, skipping category reconciliation")

	mappings, err := e.store.AllMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading category mappings: %w", err)
	}

	translator := newCategoryTranslator()
	for _, m := range mappings {
		translator.register(m.Name, m.Name, m.Name)
	}

	return translator, nil
}

// Status reports the current pairing statistics and the most recent audit
// entries without contacting either store.
func (e *Engine) Status(ctx context.Context, logLimit int) (*Stats, []*LogEntry, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}

	logs, err := e.store.RecentLogs(ctx, logLimit)
	if err != nil {
		return nil, nil, err
	}

	return stats, logs, nil
}
