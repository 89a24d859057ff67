// Package cron runs compaction passes on a cron schedule.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Config holds the dependencies for the scheduler.
type Config struct {
	// Expr is the cron expression gating runs.
	Expr string
	// Run is invoked once per due tick.
	Run func(ctx context.Context)
	// Interval is the tick interval; defaults to 1 minute if zero.
	Interval time.Duration
	Logger   *slog.Logger
}

// Scheduler fires the configured run function whenever its cron
// expression's next run time passes.
type Scheduler struct {
	expr     string
	run      func(ctx context.Context)
	interval time.Duration
	logger   *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	nextRun time.Time
}

// NewScheduler creates a Scheduler with the given config. It fails if the
// cron expression does not parse.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if _, err := cronParser.Parse(cfg.Expr); err != nil {
		return nil, err
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		expr:     cfg.Expr,
		run:      cfg.Run,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	now := time.Now()
	next, err := NextRunTime(s.expr, now)
	if err != nil {
		// Expression was validated in NewScheduler.
		next = now.Add(s.interval)
	}
	s.nextRun = next

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("compaction scheduler started", "expr", s.expr, "next_run_at", s.nextRun)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("compaction scheduler stopped")
}

// loop ticks at the configured interval and fires when the schedule is due.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires the run function if the next run time has passed, then
// advances the schedule.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	if now.Before(s.nextRun) {
		return
	}

	next, err := NextRunTime(s.expr, now)
	if err != nil {
		s.logger.Error("cron: failed to compute next run time", "expr", s.expr, "error", err)
		return
	}
	s.nextRun = next

	s.logger.Info("cron: compaction pass due", "next_run_at", s.nextRun)
	s.run(ctx)
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
