package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"MediaTrend/internal/config"
	"MediaTrend/internal/domain"
	"MediaTrend/internal/infrastructure/arr"
	"MediaTrend/internal/infrastructure/parser"
	"MediaTrend/internal/infrastructure/scheduler"
	"MediaTrend/internal/infrastructure/tmdb"
	"MediaTrend/internal/infrastructure/web"
	"MediaTrend/internal/logging"
	"MediaTrend/internal/ports"
	"MediaTrend/internal/scanner"
	"MediaTrend/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	store      *config.Store
	logger     *slog.Logger
	logs       *logging.Buffer
	level      *slog.LevelVar
	httpClient *http.Client
	source     *parser.StrategySource
	driver     *scheduler.CronScheduler
	jobs       *usecase.Scheduler

	mu          sync.Mutex
	resolver    *tmdb.Resolver
	resolverKey string
}

var _ usecase.Planner = (*Application)(nil)

// New builds the application around a settings store. logs may be nil when no dashboard runs;
// level, when set, follows logging.level on every settings reload.
func New(store *config.Store, baseLogger *slog.Logger, logs *logging.Buffer, level *slog.LevelVar) *Application {
	cfg := store.Current()
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	httpClient := &http.Client{Timeout: 20 * time.Second}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewTudumScanner(httpClient, baseLogger.With("component", "scanner.tudum")))
	renderer := parser.NewChromeRenderer(parser.BrowserOptions{
		ExecPath:    cfg.Browser.ExecPath,
		UserAgent:   cfg.Browser.UserAgent,
		MaxSessions: cfg.Browser.MaxSessions,
	}, baseLogger.With("component", "browser"))
	registry.Register(parser.NewFlixPatrolScanner(renderer, baseLogger.With("component", "scanner.flixpatrol")))

	a := &Application{
		store:      store,
		logger:     baseLogger,
		logs:       logs,
		level:      level,
		httpClient: httpClient,
		source:     parser.NewStrategySource(registry, baseLogger.With("component", "source")),
		driver:     scheduler.NewCronScheduler(cfg.Scheduler.Location(), baseLogger.With("component", "cron")),
	}
	a.jobs = usecase.NewScheduler(a.driver, a, &outcomeNotifier{store: store, client: httpClient}, baseLogger.With("component", "scheduler"))
	return a
}

// Serve starts the daily scheduler and the dashboard until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.jobs.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.jobs.Stop(stopCtx); err != nil {
			a.logger.Error("scheduler stop", "error", err)
		}
	}()

	var logs web.LogSource
	if a.logs != nil {
		logs = a.logs
	}
	server := web.NewServer(a.store, &dashboardRunner{Scheduler: a.jobs, app: a}, logs, a.httpClient, a.logger.With("component", "web"))
	return server.Run(ctx, a.store.Current().Web.Listen)
}

// RunJob executes one job immediately and returns its outcome.
func (a *Application) RunJob(ctx context.Context, key string) (domain.RunOutcome, error) {
	return a.jobs.RunNow(ctx, key)
}

// Plan builds a pipeline bound to the current settings.
func (a *Application) Plan(key usecase.JobKey) (usecase.Plan, error) {
	platform, ok := config.PlatformByID(key.PlatformID)
	if !ok {
		return usecase.Plan{}, fmt.Errorf("%w: platform %q", usecase.ErrUnknownJob, key.PlatformID)
	}

	cfg := a.store.Current()
	target := cfg.Target(key.Kind.JobSuffix())

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:   a.source,
		Resolver: a.resolverFor(cfg.General.TMDBAPIKey),
		Movies:   arr.NewRadarr(targetSettings(cfg.Radarr), a.httpClient, a.logger.With("component", "radarr")),
		Series:   arr.NewSonarr(targetSettings(cfg.Sonarr), a.httpClient, a.logger.With("component", "sonarr")),
		Logger:   a.logger.With("component", "pipeline"),
	})

	return usecase.Plan{
		Pipeline: pipeline,
		Settings: usecase.RunSettings{
			JobKey:      key.String(),
			Platform:    platform,
			Kind:        key.Kind,
			Countries:   cfg.General.Countries,
			TopCount:    cfg.General.TopCount,
			MetadataKey: cfg.General.TMDBAPIKey,
			TargetKey:   target.APIKey,
		},
	}, nil
}

// ScheduledJobs lists the enabled jobs, sorted by key.
func (a *Application) ScheduledJobs() []ports.ScheduledJob {
	return enabledJobs(a.store.Current())
}

// resolverFor keeps one resolver, and so one metadata cache, per API key.
func (a *Application) resolverFor(apiKey string) *tmdb.Resolver {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolver == nil || a.resolverKey != apiKey {
		a.resolver = tmdb.NewResolver(apiKey, tmdb.Options{}, a.logger.With("component", "tmdb"))
		a.resolverKey = apiKey
	}
	return a.resolver
}

func enabledJobs(cfg config.Config) []ports.ScheduledJob {
	jobs := make([]ports.ScheduledJob, 0, len(cfg.Scheduler.Jobs))
	for key, job := range cfg.Scheduler.Jobs {
		if !job.Enabled {
			continue
		}
		parsed, err := usecase.ParseJobKey(key)
		if err != nil {
			continue
		}
		if _, ok := config.PlatformByID(parsed.PlatformID); !ok {
			continue
		}
		jobs = append(jobs, ports.ScheduledJob{Key: key, Time: job.Time})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Key < jobs[j].Key })
	return jobs
}

func targetSettings(t config.TargetConfig) arr.Settings {
	return arr.Settings{
		URL:              t.URL,
		APIKey:           t.APIKey,
		QualityProfileID: t.QualityProfileID,
		RootFolderPath:   t.RootFolderPath,
		SearchOnAdd:      t.SearchOnAdd,
	}
}

// applySettings pushes the settings that live outside a run: timezone and log level.
func (a *Application) applySettings() {
	cfg := a.store.Current()
	a.driver.SetLocation(cfg.Scheduler.Location())
	if a.level != nil {
		a.level.Set(logging.LevelFromString(cfg.Logging.Level))
	}
}

// dashboardRunner applies changed settings before the scheduler re-reads its jobs.
type dashboardRunner struct {
	*usecase.Scheduler
	app *Application
}

func (r *dashboardRunner) Reload(ctx context.Context) error {
	r.app.applySettings()
	return r.Scheduler.Reload(ctx)
}
