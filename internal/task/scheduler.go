// Package task runs periodic maintenance jobs.
package task

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	SchedulePruneRateLimits = "0 */10 * * * *" // every 10 minutes
	ScheduleNightlyRecount  = "0 0 3 * * *"    // 03:00 every day
	RecountLookback         = 7 * 24 * time.Hour
)

// Scheduler 封装 cron 实例和任务依赖
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	logger = logger.With("system", "cron")
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	return &Scheduler{cron: c, logger: logger}
}

// RegisterJobs adds the maintenance jobs. A nil pruner skips rate-limit cleanup,
// e.g. when entries live in Redis and expire on their own.
func (s *Scheduler) RegisterJobs(pruner Pruner, maxWindow time.Duration, recounter Recounter) error {
	if pruner != nil {
		if _, err := s.cron.AddJob(SchedulePruneRateLimits, NewPruneRateLimitsJob(pruner, maxWindow, s.logger)); err != nil {
			return fmt.Errorf("add PruneRateLimitsJob: %w", err)
		}
		s.logger.Info("registered job", "job", "PruneRateLimitsJob", "schedule", SchedulePruneRateLimits)
	}

	if _, err := s.cron.AddJob(ScheduleNightlyRecount, NewRecountRecentPostsJob(recounter, RecountLookback, s.logger)); err != nil {
		return fmt.Errorf("add RecountRecentPostsJob: %w", err)
	}
	s.logger.Info("registered job", "job", "RecountRecentPostsJob", "schedule", ScheduleNightlyRecount)
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.logger.Info("Cron scheduler started")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")
	<-s.cron.Stop().Done()
	s.logger.Info("Cron scheduler stopped")
}
