// Package scheduler runs periodic maintenance on the passcode store.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/metrics"
	"github.com/robfig/cron/v3"
)

// ExpiredPasscodeDeleter is satisfied by *postgres.PasscodeRepository.
type ExpiredPasscodeDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// Reaper physically removes passcodes past their expiry. Verification
// already rejects them lazily; the reaper only bounds table growth from
// flows that were abandoned. Rows are kept for a grace period after expiry
// so a late verify still reports the code as expired rather than unknown.
type Reaper struct {
	repo     ExpiredPasscodeDeleter
	schedule string
	grace    time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewReaper(repo ExpiredPasscodeDeleter, schedule string, grace time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		repo:     repo,
		schedule: schedule,
		grace:    max(grace, 0),
		timeout:  30 * time.Second,
		now:      time.Now,
		logger:   logger.With("component", "reaper"),
	}
}

// Start registers the cycle with cron and blocks until ctx is cancelled.
// Overlapping cycles are skipped.
func (r *Reaper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() { r.Reap(ctx) }); err != nil {
		return fmt.Errorf("reaper schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.logger.Info("reaper started", "schedule", r.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reaper stopped")
	return nil
}

// Reap runs one cycle and returns how many passcodes were deleted.
func (r *Reaper) Reap(ctx context.Context) int {
	start := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.repo.DeleteExpired(cycleCtx, r.now().Add(-r.grace))
	if err != nil {
		r.logger.Error("delete expired passcodes", "error", err)
		return 0
	}
	if n > 0 {
		metrics.PasscodesReapedTotal.Add(float64(n))
		r.logger.Info("reaped expired passcodes", "count", n)
	}
	return n
}
