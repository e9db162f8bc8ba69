package scheduler

import (
	"context"
	"log/slog"
	"time"

	"multiproduct/services/subscription"
)

// jobTimeout bounds a single run so a stuck database cannot pin the job.
const jobTimeout = 30 * time.Minute

type OTPCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type SubscriptionSweeper interface {
	SweepExpired(ctx context.Context) (subscription.SweepResult, error)
	DispatchExpiryReminders(ctx context.Context) (int, error)
}

// Jobs are the periodic maintenance tasks run by the scheduler.
type Jobs struct {
	otps          OTPCleaner
	subscriptions SubscriptionSweeper
	logger        *slog.Logger
}

func NewJobs(otps OTPCleaner, subscriptions SubscriptionSweeper, logger *slog.Logger) *Jobs {
	return &Jobs{otps: otps, subscriptions: subscriptions, logger: logger}
}

func (j *Jobs) CleanupOTPs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := j.otps.Cleanup(ctx)
	if err != nil {
		j.logger.Error("otp cleanup failed", "error", err)
		return
	}
	j.logger.Info("otp cleanup finished", "removed", removed)
}

func (j *Jobs) SweepSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := j.subscriptions.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("subscription sweep aborted", "error", err, "scanned", res.Scanned)
		return
	}
	if res.Errors > 0 {
		j.logger.Warn("subscription sweep had failures", "errors", res.Errors, "scanned", res.Scanned)
	}
}

func (j *Jobs) DispatchReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := j.subscriptions.DispatchExpiryReminders(ctx); err != nil {
		j.logger.Error("expiry reminders failed", "error", err)
	}
}
