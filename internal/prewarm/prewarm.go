// Package prewarm keeps the current and next month of watched entities in
// the month cache, on a cron schedule.
package prewarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"entcal/internal/config"
	appLog "entcal/internal/log"
	"entcal/internal/metrics"
	"entcal/internal/model"
)

// RefreshFunc refreshes one month, bypassing any fresh cache entry.
type RefreshFunc func(ctx context.Context, key model.Key) error

// Runner refreshes watched months.
type Runner struct {
	refresh RefreshFunc
	cfg     func() *config.Config
	now     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Runner. cfg is consulted on every run so hot-reloaded
// watch lists take effect without a restart.
func New(refresh RefreshFunc, cfg func() *config.Config) *Runner {
	return &Runner{refresh: refresh, cfg: cfg, now: time.Now}
}

// Keys lists the months to warm for the given config at now: the current
// and the next month of every watched entity. Invalid entries are skipped.
func Keys(cfg *config.Config, now time.Time) []model.Key {
	loc := cfg.Location()
	cur := now.In(loc)
	next := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)

	keys := make([]model.Key, 0, 2*len(cfg.Watch))
	for _, w := range cfg.Watch {
		kind, err := model.ParseEntityKind(w.Kind)
		if err != nil || w.ID == "" {
			continue
		}
		keys = append(keys,
			model.KeyFor(kind, w.ID, cur),
			model.KeyFor(kind, w.ID, next),
		)
	}
	return keys
}

// RunOnce refreshes all watched months with bounded parallelism and
// returns every failure combined.
func (r *Runner) RunOnce(ctx context.Context) error {
	cfg := r.cfg()
	keys := Keys(cfg, r.now())
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PrewarmConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := r.refresh(gctx, key); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				mu.Unlock()
			}
			// Individual failures must not cancel the rest of the run.
			return nil
		})
	}
	_ = g.Wait()

	outcome := "success"
	if errs != nil {
		outcome = "partial"
		if len(multierr.Errors(errs)) == len(keys) {
			outcome = "failure"
		}
	}
	metrics.PrewarmRuns.WithLabelValues(outcome).Inc()
	appLog.Info("prewarm run finished",
		"months", len(keys),
		"failed", len(multierr.Errors(errs)),
		"outcome", outcome,
		"duration", time.Since(start),
	)
	return errs
}

// Start schedules RunOnce on spec (standard 5-field cron) in loc. Runs
// never overlap; a tick that arrives while a run is active is skipped.
func (r *Runner) Start(ctx context.Context, spec string, loc *time.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("prewarm: already started")
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(spec, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("prewarm: schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	appLog.Info("prewarm scheduled", "refresh", spec, "timezone", loc.String())
	return nil
}

// Stop stops the schedule and waits for a running prewarm to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.RunOnce(ctx); err != nil {
		appLog.Error("prewarm run had failures", err)
	}
}

// cronLogger routes robfig/cron's internal logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
