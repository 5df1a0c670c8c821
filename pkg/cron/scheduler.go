// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	name    string
	job     Job
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler creates a scheduler that runs job on spec (standard 5-field
// format or descriptors such as @hourly). Overlapping runs are skipped.
func NewScheduler(name, spec string, timeout time.Duration, job Job, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:    c,
		spec:    spec,
		name:    name,
		job:     job,
		timeout: timeout,
		logger:  logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("job", s.name),
		slog.String("schedule", s.spec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done once
// running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the job synchronously.
func (s *Scheduler) RunNow() {
	s.run()
}

// Next returns the next activation time, or zero when not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("scheduled job starting", slog.String("job", s.name))

	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			slog.String("job", s.name),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("scheduled job completed",
		slog.String("job", s.name),
		slog.Duration("duration", time.Since(start)),
	)
}
