// credit_reset.go implements the CreditResetJob background job, which periodically restores
// the monthly API credit allowance of every company whose reset month has passed. Reads of a
// company's balance also reset lazily, so the job only keeps idle companies current and is
// safe to run on every replica: the reset statement is conditional on the stored reset date.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/safego"
)

// DefaultResetCheckInterval is used when credits.reset_check_interval is unset.
const DefaultResetCheckInterval = time.Hour

// CreditResetter is implemented by *services.CreditService.
type CreditResetter interface {
	ResetDue(ctx context.Context) (int64, error)
}

// CreditResetJob periodically resets due API credit allowances.
type CreditResetJob struct {
	credits  CreditResetter
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCreditResetJob creates a new CreditResetJob.
func NewCreditResetJob(credits CreditResetter, cfg *config.CreditsConfig) *CreditResetJob {
	interval := cfg.ResetCheckInterval
	if interval <= 0 {
		interval = DefaultResetCheckInterval
	}
	return &CreditResetJob{
		credits:  credits,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs a check immediately, then on every tick, until ctx is cancelled or Stop is
// called. It blocks; launch it with safego.Go.
func (j *CreditResetJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("credit reset job started", "interval", j.interval)

	j.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			j.runCheck(ctx)
		case <-j.stopChan:
			slog.Info("credit reset job stopped")
			return
		case <-ctx.Done():
			slog.Info("credit reset job context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit. Calling it more than once is safe.
func (j *CreditResetJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// runCheck performs one reset pass. A panic in the store is recovered so the loop survives.
func (j *CreditResetJob) runCheck(ctx context.Context) {
	safego.Run("credit-reset", func() {
		n, err := j.credits.ResetDue(ctx)
		if err != nil {
			slog.Error("credit reset job: reset failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("credit reset job: allowances restored", "companies", n)
		}
	})
}
