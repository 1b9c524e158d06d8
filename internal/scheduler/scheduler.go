package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	defaultJobTimeout     = 30 * time.Minute
)

// Job is one scheduled pipeline run.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron spec. Ticks never overlap: a tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	spec       string
	job        Job
	jobTimeout time.Duration
	log        *slog.Logger
}

func New(ctx context.Context, spec string, job Job, jobTimeout time.Duration, log *slog.Logger) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}

	c := cron.New(
		cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		spec:       strings.TrimSpace(spec),
		job:        job,
		jobTimeout: jobTimeout,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runJob); err != nil {
		return fmt.Errorf("add func (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runJob() {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()

	if err := s.job(ctx); err != nil {
		s.log.ErrorContext(ctx, "Scheduled run failed",
			"error", err,
			"spec", s.spec,
			"durationSeconds", time.Since(start).Seconds())

		return
	}

	s.log.InfoContext(ctx, "Scheduled run is finished",
		"spec", s.spec,
		"durationSeconds", time.Since(start).Seconds())
}
