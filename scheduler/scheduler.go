// Package scheduler runs the periodic OTP cleanup, subscription sweep and
// expiry reminder jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	OTPCleanup        string
	SubscriptionSweep string
	ExpiryReminders   string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

// Start registers the jobs and starts the cron loop. An invalid schedule
// aborts startup before anything runs.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"otp cleanup", s.schedules.OTPCleanup, s.jobs.CleanupOTPs},
		{"subscription sweep", s.schedules.SubscriptionSweep, s.jobs.SweepSubscriptions},
		{"expiry reminders", s.schedules.ExpiryReminders, s.jobs.DispatchReminders},
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", e.name, e.schedule, err)
		}
		s.logger.Info("scheduled job", "job", e.name, "schedule", e.schedule)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
