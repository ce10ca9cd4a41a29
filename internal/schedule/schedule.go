// Package schedule repeats a job on a cron schedule. Runs never overlap:
// the next tick is computed only after the previous run has returned.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs a Job now and then on every tick of a cron expression.
type Scheduler struct {
	expr   string
	logger *slog.Logger

	// now and after are replaced in tests.
	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// New validates expr and creates a Scheduler for it.
func New(expr string, logger *slog.Logger) (*Scheduler, error) {
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return nil, fmt.Errorf("invalid schedule %q", expr)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		expr:   expr,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(s.expr, t, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("computing next tick of %q: %w", s.expr, err)
	}
	return next, nil
}

// Run executes job immediately and then on each tick until ctx is done.
// A failing job is logged and retried on the next tick; stop reports
// whether an error should end the loop instead.
func (s *Scheduler) Run(
	ctx context.Context, job Job, stop func(error) bool,
) error {
	for {
		if err := job(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if stop != nil && stop(err) {
				return err
			}
			s.logger.Error("scheduled run failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		next, err := s.Next(s.now())
		if err != nil {
			return err
		}
		wait := next.Sub(s.now())
		s.logger.Info("waiting for next run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(wait):
		}
	}
}
