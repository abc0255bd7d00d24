package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MediaTrend/internal/ports"
)

// CronScheduler triggers each job once a day at its HH:MM in the configured location.
type CronScheduler struct {
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]registered

	// base outlives the caller of the first Start; every loop context derives from it.
	base     context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	draining []context.Context
}

type registered struct {
	id   cron.EntryID
	time string
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for the given location (UTC when nil).
func NewCronScheduler(loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{location: loc, logger: log, entries: map[string]registered{}}
}

// SetLocation changes the timezone used from the next Start on.
func (c *CronScheduler) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
}

// Start registers jobs and starts the cron loop. Calling it again replaces every entry.
// Only Stop cancels the context handed to jobs; ctx contributes its values, not its deadline.
func (c *CronScheduler) Start(ctx context.Context, jobs []ports.ScheduledJob, run func(ctx context.Context, key string)) error {
	if run == nil {
		return fmt.Errorf("scheduler: run callback is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.base == nil {
		c.base = context.WithoutCancel(ctx)
	}
	if c.cron != nil && c.cron.Location().String() != c.location.String() {
		// Entries are computed in the cron's location, so a timezone change needs a new loop.
		// Jobs already running on the old loop keep their context.
		c.draining = append(c.draining, c.cron.Stop())
		c.cron = nil
	}
	if c.cron == nil {
		c.cron = cron.New(cron.WithLocation(c.location))
		if c.ctx == nil || c.ctx.Err() != nil {
			c.ctx, c.cancel = context.WithCancel(c.base)
		}
		c.cron.Start()
	}

	for key, entry := range c.entries {
		c.cron.Remove(entry.id)
		delete(c.entries, key)
	}

	jobCtx := c.ctx
	for _, job := range jobs {
		spec, err := dailySpec(job.Time)
		if err != nil {
			c.warn("job not scheduled", "job", job.Key, "time", job.Time, "error", err)
			continue
		}

		key := job.Key
		id, err := c.cron.AddFunc(spec, func() { run(jobCtx, key) })
		if err != nil {
			c.warn("job not scheduled", "job", key, "spec", spec, "error", err)
			continue
		}
		c.entries[key] = registered{id: id, time: job.Time}
		c.info("job scheduled", "job", key, "time", job.Time)
	}

	return nil
}

// Stop halts the cron loop and waits for running jobs, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cron == nil {
		c.mu.Unlock()
		return nil
	}
	pending := append(c.draining, c.cron.Stop())
	c.cancel()
	c.cron = nil
	c.draining = nil
	c.entries = map[string]registered{}
	c.mu.Unlock()

	for _, stopped := range pending {
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return fmt.Errorf("scheduler stop: %w", ctx.Err())
		}
	}
	return nil
}

// Running reports whether the cron loop is active.
func (c *CronScheduler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cron != nil
}

// Entries lists registered jobs with their next trigger, soonest first.
func (c *CronScheduler) Entries() []ports.ScheduledEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cron == nil {
		return nil
	}
	out := make([]ports.ScheduledEntry, 0, len(c.entries))
	for key, reg := range c.entries {
		out = append(out, ports.ScheduledEntry{Key: key, Time: reg.time, Next: c.cron.Entry(reg.id).Next})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].Key < out[j].Key
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// dailySpec converts "HH:MM" to the five-field cron spec "MM HH * * *".
func dailySpec(clock string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q", clock)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return "", fmt.Errorf("invalid minute in %q", clock)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (c *CronScheduler) info(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *CronScheduler) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
