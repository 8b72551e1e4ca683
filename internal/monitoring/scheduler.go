package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var jobRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "taskdeck_job_runs_total",
		Help: "Background job runs by job and result.",
	},
	[]string{"job", "result"},
)

func init() {
	prometheus.MustRegister(jobRunsTotal)
}

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Scheduler runs background jobs on cron specs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewScheduler creates a scheduler. Each run gets a context bounded by timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
	}
}

// Add registers fn under name with a standard cron spec such as "@every 1m".
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return err
	}
	log.Info().Str("job", name).Str("spec", spec).Msg("Scheduled background job")
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler.")
}

func (s *Scheduler) run(name string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			jobRunsTotal.WithLabelValues(name, "panic").Inc()
			log.Error().Interface("panic", r).Str("job", name).Msg("Scheduler: job panicked")
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		jobRunsTotal.WithLabelValues(name, "error").Inc()
		log.Error().Err(err).Str("job", name).Msg("Scheduler: job failed")
		return
	}
	jobRunsTotal.WithLabelValues(name, "ok").Inc()
	log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Scheduler: job finished")
}
