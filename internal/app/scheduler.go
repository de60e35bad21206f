package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
)

// RunFunc performs one seeding invocation. A nil override uses the configured window.
type RunFunc func(ctx context.Context, override *domain.Window) (domain.RunOutcome, error)

// Scheduler re-runs a RunFunc on a fixed interval until its context ends.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	log      logger.Logger
}

// NewScheduler returns a scheduler invoking run every interval.
func NewScheduler(interval time.Duration, run RunFunc, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{interval: interval, run: run, log: log}
}

// Run executes once immediately, then on every tick. Run failures are logged and never stop
// the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.run == nil {
		return fmt.Errorf("scheduler is not initialized")
	}
	if s.interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", s.interval)
	}

	s.log.InfoObj("scheduler loop starting", "scheduler_state", map[string]any{
		"interval": s.interval.String(),
	})

	s.runOnce(ctx, "initial seed failed")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoObj("scheduler loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.runOnce(ctx, "scheduled seed failed")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, failMsg string) {
	start := time.Now()
	outcome, err := s.run(ctx, nil)
	if err != nil {
		s.log.ErrorObj(failMsg, "error", err.Error())
		return
	}
	s.log.InfoObj("seed finished", "seed_meta", map[string]any{
		"run_id":       outcome.RunID,
		"status":       outcome.Status,
		"processed":    outcome.Processed,
		"inserted":     outcome.Inserted,
		"skipped":      outcome.Skipped,
		"duration_sec": time.Since(start).Seconds(),
	})
}
