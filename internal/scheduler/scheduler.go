// Package scheduler runs the periodic ledger jobs on gocron: the refresh
// cycle, the wallet reminder and the processed-event purge.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Config selects the job cadence. A nil task or an empty ReminderCron skips
// that job.
type Config struct {
	RefreshPeriod time.Duration
	ReminderCron  string // 5-field crontab, evaluated in UTC
	PurgePeriod   time.Duration
}

// Tasks are the jobs to run.
type Tasks struct {
	Refresh Task
	Remind  Task
	Purge   Task
}

// Scheduler owns the gocron scheduler.
type Scheduler struct {
	s gocron.Scheduler
}

// New registers the jobs. Nothing runs until Start.
func New(cfg Config, tasks Tasks) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(zerologAdapter{l: log.With().Str("component", "scheduler").Logger()}),
	)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	out := &Scheduler{s: s}

	if tasks.Refresh != nil {
		if cfg.RefreshPeriod <= 0 {
			_ = s.Shutdown()
			return nil, errors.New("refresh period must be positive")
		}
		_, err = s.NewJob(
			gocron.DurationJob(cfg.RefreshPeriod),
			gocron.NewTask(run("refresh", tasks.Refresh)),
			gocron.WithName("refresh"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("refresh job: %w", err)
		}
	}

	if tasks.Remind != nil && cfg.ReminderCron != "" {
		_, err = s.NewJob(
			gocron.CronJob(cfg.ReminderCron, false),
			gocron.NewTask(run("reminder", tasks.Remind)),
			gocron.WithName("reminder"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("reminder job %q: %w", cfg.ReminderCron, err)
		}
	}

	if tasks.Purge != nil {
		period := cfg.PurgePeriod
		if period <= 0 {
			period = time.Hour
		}
		_, err = s.NewJob(
			gocron.DurationJob(period),
			gocron.NewTask(run("purge", tasks.Purge)),
			gocron.WithName("purge"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("purge job: %w", err)
		}
	}
	return out, nil
}

// Start begins scheduling.
func (s *Scheduler) Start() { s.s.Start() }

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	var out []string
	for _, j := range s.s.Jobs() {
		out = append(out, j.Name())
	}
	return out
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }

func run(name string, t Task) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		l := log.With().Str("component", "scheduler").Str("job", name).Logger()
		if err := t(ctx); err != nil {
			l.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		l.Debug().Dur("took", time.Since(start)).Msg("job done")
	}
}

// zerologAdapter satisfies gocron.Logger.
type zerologAdapter struct{ l zerolog.Logger }

func (z zerologAdapter) Debug(msg string, args ...any) { z.l.Debug().Fields(args).Msg(msg) }
func (z zerologAdapter) Info(msg string, args ...any)  { z.l.Info().Fields(args).Msg(msg) }
func (z zerologAdapter) Warn(msg string, args ...any)  { z.l.Warn().Fields(args).Msg(msg) }
func (z zerologAdapter) Error(msg string, args ...any) { z.l.Error().Fields(args).Msg(msg) }
