package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"MediaTrend/internal/ports"
)

func TestDailySpec(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"04:00": "0 4 * * *",
		"23:59": "59 23 * * *",
		"7:05":  "5 7 * * *",
	}
	for in, want := range valid {
		got, err := dailySpec(in)
		if err != nil {
			t.Fatalf("dailySpec(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("dailySpec(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "4", "24:00", "12:60", "aa:bb", "12:5"} {
		if _, err := dailySpec(in); err == nil {
			t.Fatalf("dailySpec(%q) should fail", in)
		}
	}
}

func TestStartRegistersValidJobsAndReloadReplaces(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler(loc, nil)
	noop := func(context.Context, string) {}

	err = s.Start(context.Background(), []ports.ScheduledJob{
		{Key: "netflix_movies", Time: "04:00"},
		{Key: "netflix_series", Time: "bogus"},
		{Key: "disney_movies", Time: "05:00"},
	}, noop)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if !s.Running() {
		t.Fatalf("scheduler should be running")
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	for _, e := range entries {
		if e.Next.IsZero() {
			t.Fatalf("entry %s has no next run", e.Key)
		}
		if e.Next.Location().String() != "Europe/Zurich" {
			t.Fatalf("entry %s next run in %s", e.Key, e.Next.Location())
		}
	}

	if err := s.Start(context.Background(), []ports.ScheduledJob{{Key: "hbo_series", Time: "06:00"}}, noop); err != nil {
		t.Fatalf("reload: %v", err)
	}
	entries = s.Entries()
	if len(entries) != 1 || entries[0].Key != "hbo_series" || entries[0].Time != "06:00" {
		t.Fatalf("reload should replace entries, got %+v", entries)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil, nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := s.Start(context.Background(), nil, func(context.Context, string) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Running() || s.Entries() != nil {
		t.Fatalf("scheduler should be stopped")
	}
}

func TestStartRejectsNilCallback(t *testing.T) {
	t.Parallel()

	if err := NewCronScheduler(nil, nil).Start(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}

func TestSetLocationAppliesOnNextStart(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler(time.UTC, nil)
	noop := func(context.Context, string) {}
	jobs := []ports.ScheduledJob{{Key: "netflix_movies", Time: "04:00"}}

	if err := s.Start(context.Background(), jobs, noop); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	s.SetLocation(loc)
	if err := s.Start(context.Background(), jobs, noop); err != nil {
		t.Fatalf("restart: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].Next.Location().String() != "America/New_York" {
		t.Fatalf("entries should follow the new location, got %+v", entries)
	}
}

func TestReloadFromShortLivedContextKeepsJobsRunnable(t *testing.T) {
	t.Parallel()

	first, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler(first, nil)

	var (
		mu     sync.Mutex
		jobCtx context.Context
	)
	capture := func(ctx context.Context, _ string) {
		mu.Lock()
		jobCtx = ctx
		mu.Unlock()
	}
	jobs := []ports.ScheduledJob{{Key: "netflix_movies", Time: "04:00"}}

	if err := s.Start(context.Background(), jobs, capture); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	s.mu.Lock()
	loop := s.cron
	s.mu.Unlock()

	// A settings save loads the same zone again, as a distinct pointer.
	again, _ := time.LoadLocation("Europe/Berlin")
	s.SetLocation(again)

	reqCtx, cancel := context.WithCancel(context.Background())
	if err := s.Start(reqCtx, jobs, capture); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cancel()

	s.mu.Lock()
	if s.cron != loop {
		s.mu.Unlock()
		t.Fatalf("an unchanged timezone must not rebuild the cron loop")
	}
	entry := s.cron.Entry(s.entries["netflix_movies"].id)
	s.mu.Unlock()
	if !entry.Valid() {
		t.Fatalf("job should still be registered")
	}
	entry.Job.Run()

	mu.Lock()
	defer mu.Unlock()
	if jobCtx == nil {
		t.Fatalf("job did not run")
	}
	if err := jobCtx.Err(); err != nil {
		t.Fatalf("job context should outlive the reload request, got %v", err)
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil, nil)
	var jobCtx context.Context
	if err := s.Start(context.Background(), []ports.ScheduledJob{{Key: "hbo_series", Time: "05:00"}}, func(ctx context.Context, _ string) {
		jobCtx = ctx
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.mu.Lock()
	entry := s.cron.Entry(s.entries["hbo_series"].id)
	s.mu.Unlock()
	entry.Job.Run()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if jobCtx == nil || jobCtx.Err() == nil {
		t.Fatalf("Stop should cancel the job context")
	}
}
