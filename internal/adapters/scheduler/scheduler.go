// Package scheduler runs secret-coffee matching on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/pkg/logger"
	"github.com/okian/coffeematch/pkg/metrics"
)

// JobName identifies the matching job in gocron.
const JobName = "secret-coffee-matching"

// Run outcomes, used as the scheduled_runs_total label.
const (
	OutcomeDone   = "done"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Sentinel kinds for scheduler errors.
var (
	ErrInvalidInterval = errors.New("matching interval must be positive")
	ErrNotStarted      = errors.New("scheduler not started")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)

// Runner performs one matching run.
type Runner interface {
	RunMatchingForActiveEmployees(ctx context.Context) ([]model.Pair, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithInterval sets the time between runs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithRunOnStart makes the first run happen as soon as the scheduler starts
// instead of one interval later.
func WithRunOnStart(v bool) Option {
	return func(s *Scheduler) { s.runOnStart = v }
}

// WithResultHandler is called after every run with its pairs and error.
func WithResultHandler(fn func([]model.Pair, error)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// Scheduler wraps a gocron scheduler owning a single singleton-mode job, so
// runs never overlap.
type Scheduler struct {
	scheduler  gocron.Scheduler
	runner     Runner
	log        logger.Logger
	interval   time.Duration
	runOnStart bool
	onResult   func([]model.Pair, error)

	mu     sync.Mutex
	job    gocron.Job
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a stopped Scheduler for runner.
func New(runner Runner, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		runner:   runner,
		log:      logger.Discard(),
		interval: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, s.interval)
	}
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s.scheduler = gs
	return s, nil
}

// Start registers the matching job and starts the scheduler. Runs receive
// a context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	jobOpts := []gocron.JobOption{
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if s.runOnStart {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.execute),
		jobOpts...,
	)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to create matching job: %w", err)
	}
	s.job = job

	s.log.Info(ctx, "starting matching scheduler",
		logger.Duration("interval", s.interval),
		logger.Bool("run_on_start", s.runOnStart))
	s.scheduler.Start()
	return nil
}

// Stop cancels in-flight runs and shuts the scheduler down.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	s.log.Info(ctx, "stopping matching scheduler")
	if cancel != nil {
		cancel()
	}
	return s.scheduler.Shutdown()
}

// RunNow triggers the matching job outside its schedule.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return ErrNotStarted
	}
	return job.RunNow()
}

// NextRun returns the time of the next scheduled run.
func (s *Scheduler) NextRun() (time.Time, error) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, ErrNotStarted
	}
	return job.NextRun()
}

// Outcome classifies a run result.
func Outcome(pairs []model.Pair, err error) string {
	switch {
	case err != nil:
		return OutcomeFailed
	case len(pairs) == 0:
		return OutcomeEmpty
	default:
		return OutcomeDone
	}
}

func (s *Scheduler) execute() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	pairs, err := s.runner.RunMatchingForActiveEmployees(ctx)
	outcome := Outcome(pairs, err)
	metrics.RecordScheduledRun(outcome)

	fields := []logger.Field{
		logger.String("job", JobName),
		logger.String("outcome", outcome),
		logger.Int("pairs_count", len(pairs)),
		logger.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.log.Error(ctx, "scheduled matching run failed", append(fields, logger.Error(err))...)
	} else {
		s.log.Info(ctx, "scheduled matching run finished", fields...)
	}

	if s.onResult != nil {
		s.onResult(pairs, err)
	}
}
