package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

type fakeDriver struct {
	mu      sync.Mutex
	jobs    []ports.ScheduledJob
	run     func(context.Context, string)
	started int
	stopped bool
}

func (d *fakeDriver) Start(_ context.Context, jobs []ports.ScheduledJob, run func(context.Context, string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs, d.run = jobs, run
	d.started++
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDriver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started > 0 && !d.stopped
}

func (d *fakeDriver) Entries() []ports.ScheduledEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ports.ScheduledEntry, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, ports.ScheduledEntry{Key: j.Key, Time: j.Time})
	}
	return out
}

func (d *fakeDriver) fire(key string) {
	d.mu.Lock()
	run := d.run
	d.mu.Unlock()
	run(context.Background(), key)
}

// blockingSource holds every fetch until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSource) FetchTopTitles(ctx context.Context, _ domain.ScrapeRequest) ([]string, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []string{"Alpha"}, nil
}

type fakePlanner struct {
	source ports.TitleSource
	jobs   []ports.ScheduledJob
	movies *fakeTarget
}

func (p *fakePlanner) Plan(key JobKey) (Plan, error) {
	if key.PlatformID != "netflix" {
		return Plan{}, ErrUnknownJob
	}
	pipeline := NewPipeline(PipelineDeps{
		Source:   p.source,
		Resolver: &fakeResolver{matches: map[string]domain.MetadataMatch{"Alpha": {ExternalID: 1}}},
		Movies:   p.movies,
		Series:   &fakeTarget{name: "sonarr"},
	})
	settings := movieSettings("US")
	settings.Kind = key.Kind
	return Plan{Pipeline: pipeline, Settings: settings}, nil
}

func (p *fakePlanner) ScheduledJobs() []ports.ScheduledJob { return p.jobs }

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []domain.RunOutcome
	err      error
}

func (n *recordingNotifier) PublishOutcome(_ context.Context, o domain.RunOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return n.err
}

func TestParseJobKey(t *testing.T) {
	t.Parallel()

	key, err := ParseJobKey("netflix_movies")
	require.NoError(t, err)
	assert.Equal(t, JobKey{PlatformID: "netflix", Kind: domain.KindMovie}, key)
	assert.Equal(t, "netflix_movies", key.String())

	key, err = ParseJobKey("hbo_series")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSeries, key.Kind)

	for _, bad := range []string{"", "netflix", "_movies", "netflix_", "netflix_tv", "netflix-movies"} {
		_, err := ParseJobKey(bad)
		assert.ErrorIs(t, err, ErrUnknownJob, bad)
	}
}

func TestSchedulerRunNowNotifies(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{err: errors.New("telegram down")}
	movies := &fakeTarget{name: "radarr"}
	planner := &fakePlanner{source: &fakeSource{lists: map[string][]string{"US": {"Alpha"}}}, movies: movies}
	s := NewScheduler(nil, planner, notifier, nil)

	outcome, err := s.RunNow(context.Background(), "netflix_movies")
	require.NoError(t, err, "notification failures must not fail the run")
	assert.Equal(t, 1, outcome.Added)
	assert.Equal(t, "netflix_movies", outcome.JobKey)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, outcome.RunID, notifier.outcomes[0].RunID)
	assert.Len(t, s.LastOutcomes(), 1)
	assert.Empty(t, s.Running())
}

func TestSchedulerUnknownJob(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, &fakePlanner{}, nil, nil)
	_, err := s.RunNow(context.Background(), "myflix_movies")
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, err = s.RunNow(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Empty(t, s.Running())
}

func TestSchedulerRejectsConcurrentRunOfSameKey(t *testing.T) {
	t.Parallel()

	source := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	planner := &fakePlanner{source: source, movies: &fakeTarget{name: "radarr"}}
	s := NewScheduler(nil, planner, nil, nil)

	require.NoError(t, s.Trigger(context.Background(), "netflix_movies"))
	<-source.entered

	assert.Equal(t, []string{"netflix_movies"}, s.Running())
	_, err := s.RunNow(context.Background(), "netflix_movies")
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.ErrorIs(t, s.Trigger(context.Background(), "netflix_movies"), ErrJobRunning)

	close(source.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Running())
	require.Len(t, s.LastOutcomes(), 1)
}

func TestSchedulerStartRegistersPlannerJobs(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	movies := &fakeTarget{name: "radarr"}
	planner := &fakePlanner{
		source: &fakeSource{lists: map[string][]string{"US": {"Alpha"}}},
		movies: movies,
		jobs:   []ports.ScheduledJob{{Key: "netflix_movies", Time: "04:00"}},
	}
	s := NewScheduler(driver, planner, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Active())
	assert.Len(t, s.Entries(), 1)

	driver.fire("netflix_movies")
	assert.Len(t, movies.added, 1)

	planner.jobs = nil
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2, driver.started)
	assert.Empty(t, s.Entries())

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Active())
}
