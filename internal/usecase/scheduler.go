package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

var (
	// ErrUnknownJob is returned for keys that do not map to a catalog platform and kind.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when the same key is already executing.
	ErrJobRunning = errors.New("job already running")
)

// JobKey is the parsed form of "<platformId>_<movies|series>".
type JobKey struct {
	PlatformID string
	Kind       domain.MediaKind
}

// ParseJobKey splits a job key at its last underscore.
func ParseJobKey(key string) (JobKey, error) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return JobKey{}, fmt.Errorf("%w: %q", ErrUnknownJob, key)
	}
	suffix := key[i+1:]
	if suffix != "movies" && suffix != "series" {
		return JobKey{}, fmt.Errorf("%w: %q", ErrUnknownJob, key)
	}
	kind, _ := domain.ParseMediaKind(suffix)
	return JobKey{PlatformID: key[:i], Kind: kind}, nil
}

// String renders the key back to its canonical form.
func (k JobKey) String() string {
	return k.PlatformID + "_" + k.Kind.JobSuffix()
}

// Plan is everything one run needs: the pipeline bound to current credentials and its settings.
type Plan struct {
	Pipeline *Pipeline
	Settings RunSettings
}

// Planner turns the live configuration into runnable plans.
type Planner interface {
	// Plan returns ErrUnknownJob when the key's platform is not in the catalog.
	Plan(key JobKey) (Plan, error)
	// ScheduledJobs lists the enabled jobs with their daily time.
	ScheduledJobs() []ports.ScheduledJob
}

// Scheduler wires the cron-like driver with the pipeline use case and guards each job key.
type Scheduler struct {
	driver   ports.Scheduler
	planner  Planner
	notifier ports.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
	last    map[string]domain.RunOutcome
	wg      sync.WaitGroup
}

// NewScheduler returns a helper to start/stop recurring jobs and run them on demand.
// driver and notifier may be nil.
func NewScheduler(driver ports.Scheduler, planner Planner, notifier ports.Notifier, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(discardHandler{})
	}
	return &Scheduler{
		driver:   driver,
		planner:  planner,
		notifier: notifier,
		logger:   log,
		running:  map[string]struct{}{},
		last:     map[string]domain.RunOutcome{},
	}
}

// Start registers every enabled job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.planner == nil {
		return nil
	}
	jobs := s.planner.ScheduledJobs()
	if err := s.driver.Start(ctx, jobs, s.onTrigger); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.logger.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Reload re-reads the enabled jobs after a settings change.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.logger.Info("reloading scheduler jobs")
	return s.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler and waits for background runs.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("wait for running jobs: %w", ctx.Err()))
	}
	return err
}

// RunNow executes the job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, key string) (domain.RunOutcome, error) {
	plan, release, err := s.acquire(key)
	if err != nil {
		return domain.RunOutcome{}, err
	}
	defer release()
	return s.execute(ctx, plan)
}

// Trigger validates and reserves the job, then runs it in the background.
func (s *Scheduler) Trigger(ctx context.Context, key string) error {
	plan, release, err := s.acquire(key)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		// The run outlives the request that triggered it.
		_, _ = s.execute(context.WithoutCancel(ctx), plan)
	}()
	return nil
}

// Running lists job keys currently executing.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.running))
	for key := range s.running {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// LastOutcomes returns the most recent outcome of each job that ran in this process.
func (s *Scheduler) LastOutcomes() []domain.RunOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RunOutcome, 0, len(s.last))
	for _, o := range s.last {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobKey < out[j].JobKey })
	return out
}

// Entries proxies the driver's next-run table.
func (s *Scheduler) Entries() []ports.ScheduledEntry {
	if s.driver == nil {
		return nil
	}
	return s.driver.Entries()
}

// Active reports whether the time-based driver is running.
func (s *Scheduler) Active() bool {
	return s.driver != nil && s.driver.Running()
}

func (s *Scheduler) onTrigger(ctx context.Context, key string) {
	s.logger.Info("scheduled job triggered", "job", key)
	_, err := s.RunNow(ctx, key)
	switch {
	case errors.Is(err, ErrJobRunning):
		s.logger.Warn("scheduled job skipped, previous run still active", "job", key)
	case err != nil:
		s.logger.Error("scheduled job failed", "job", key, "error", err)
	}
}

// acquire parses the key, builds the plan and marks the key busy.
func (s *Scheduler) acquire(key string) (Plan, func(), error) {
	parsed, err := ParseJobKey(key)
	if err != nil {
		return Plan{}, nil, err
	}
	if s.planner == nil {
		return Plan{}, nil, fmt.Errorf("%w: no planner configured", ErrUnknownJob)
	}
	canonical := parsed.String()

	s.mu.Lock()
	if _, busy := s.running[canonical]; busy {
		s.mu.Unlock()
		return Plan{}, nil, fmt.Errorf("%w: %s", ErrJobRunning, canonical)
	}
	s.running[canonical] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.running, canonical)
		s.mu.Unlock()
	}

	plan, err := s.planner.Plan(parsed)
	if err != nil {
		release()
		return Plan{}, nil, err
	}
	if plan.Pipeline == nil {
		release()
		return Plan{}, nil, fmt.Errorf("job %s: no pipeline", canonical)
	}
	plan.Settings.JobKey = canonical
	return plan, release, nil
}

func (s *Scheduler) execute(ctx context.Context, plan Plan) (domain.RunOutcome, error) {
	outcome, err := plan.Pipeline.Run(ctx, plan.Settings)

	s.mu.Lock()
	s.last[plan.Settings.JobKey] = outcome
	s.mu.Unlock()

	if s.notifier != nil {
		if nErr := s.notifier.PublishOutcome(ctx, outcome); nErr != nil {
			s.logger.Warn("notification failed", "job", plan.Settings.JobKey, "error", nErr)
		}
	}
	return outcome, err
}
