package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

const defaultScrapeConcurrency = 4

// RunSettings is the immutable configuration snapshot of one run.
type RunSettings struct {
	JobKey      string
	Platform    domain.Platform
	Kind        domain.MediaKind
	Countries   []string
	TopCount    int
	MetadataKey string
	TargetKey   string
}

// PipelineDeps wires all driven adapters into the reconciliation pipeline.
type PipelineDeps struct {
	Source   ports.TitleSource
	Resolver ports.MetadataResolver
	Movies   ports.Target
	Series   ports.SeriesTarget
	Logger   *slog.Logger

	// ScrapeConcurrency bounds parallel country fetches; zero means 4.
	ScrapeConcurrency int
}

// Pipeline reconciles a platform's top lists with the target library.
type Pipeline struct {
	source      ports.TitleSource
	resolver    ports.MetadataResolver
	movies      ports.Target
	series      ports.SeriesTarget
	logger      *slog.Logger
	concurrency int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	concurrency := deps.ScrapeConcurrency
	if concurrency <= 0 {
		concurrency = defaultScrapeConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &Pipeline{
		source:      deps.Source,
		resolver:    deps.Resolver,
		movies:      deps.Movies,
		series:      deps.Series,
		logger:      logger,
		concurrency: concurrency,
	}
}

// run carries the per-invocation state.
type run struct {
	settings RunSettings
	target   ports.Target
	index    domain.LibraryIndex
	outcome  domain.RunOutcome
	logger   *slog.Logger
}

// Run executes one pass: validate, load library, scrape, then resolve and submit each title.
// Only a missing precondition or a cancelled context is returned as an error; everything else
// degrades the outcome counts.
func (p *Pipeline) Run(ctx context.Context, settings RunSettings) (domain.RunOutcome, error) {
	r := &run{
		settings: settings,
		outcome: domain.RunOutcome{
			RunID:     uuid.NewString(),
			JobKey:    settings.JobKey,
			Source:    settings.Platform.ID,
			Kind:      settings.Kind,
			StartedAt: time.Now(),
		},
	}
	r.logger = p.logger.With("run_id", r.outcome.RunID, "platform", settings.Platform.ID, "kind", settings.Kind)

	target, err := p.validate(settings)
	if err != nil {
		r.outcome.Error = err.Error()
		r.logger.Error("run aborted", "step", "validate", "error", err)
		return r.finish(), err
	}
	r.target = target
	r.outcome.Target = target.Name()
	r.logger.Info("run started", "target", target.Name(), "countries", strings.Join(settings.Countries, ","))

	r.index = p.loadLibrary(ctx, r)

	titles := p.scrape(ctx, r)
	r.outcome.Scraped = len(titles)
	r.logger.Info("titles scraped", "unique", len(titles))

	for _, title := range titles.Sorted() {
		if err := ctx.Err(); err != nil {
			r.outcome.Error = err.Error()
			r.logger.Warn("run cancelled", "error", err)
			return r.finish(), fmt.Errorf("run %s: %w", r.outcome.RunID, err)
		}
		p.reconcile(ctx, r, title)
	}

	outcome := r.finish()
	r.logger.Info("run finished", "summary", outcome.Summary(), "duration", outcome.Duration)
	return outcome, nil
}

func (r *run) finish() domain.RunOutcome {
	r.outcome.Duration = time.Since(r.outcome.StartedAt)
	return r.outcome
}

// validate checks credentials and collaborators before any network call.
func (p *Pipeline) validate(settings RunSettings) (ports.Target, error) {
	if strings.TrimSpace(settings.MetadataKey) == "" {
		return nil, &domain.PreconditionError{Field: "tmdb api key"}
	}

	var target ports.Target
	switch settings.Kind {
	case domain.KindMovie:
		if p.movies != nil {
			target = p.movies
		}
	case domain.KindSeries:
		if p.series != nil {
			target = p.series
		}
	default:
		return nil, &domain.PreconditionError{Field: "media kind"}
	}
	if target == nil {
		return nil, &domain.PreconditionError{Field: settings.Kind.JobSuffix() + " target"}
	}
	if strings.TrimSpace(settings.TargetKey) == "" {
		return nil, &domain.PreconditionError{Field: target.Name() + " api key"}
	}
	if p.source == nil {
		return nil, &domain.PreconditionError{Field: "title source"}
	}
	if p.resolver == nil {
		return nil, &domain.PreconditionError{Field: "metadata resolver"}
	}
	if len(settings.Countries) == 0 {
		return nil, &domain.PreconditionError{Field: "countries"}
	}
	return target, nil
}

// loadLibrary fetches the target index once; a failure leaves the run with an empty index.
func (p *Pipeline) loadLibrary(ctx context.Context, r *run) domain.LibraryIndex {
	index, err := r.target.ListExisting(ctx)
	if err != nil {
		stageErr := &domain.StageError{Stage: domain.StageLibrary, Subject: r.target.Name(), Err: err}
		r.logger.Warn("library unavailable, continuing with empty index", "step", domain.StageLibrary, "error", stageErr)
		return domain.LibraryIndex{}
	}
	if index == nil {
		index = domain.LibraryIndex{}
	}
	r.logger.Info("library loaded", "target", r.target.Name(), "keys", len(index))
	return index
}

// scrape fans out over countries; a failing country only shrinks the set.
func (p *Pipeline) scrape(ctx context.Context, r *run) domain.TitleSet {
	var (
		mu     sync.Mutex
		titles = domain.NewTitleSet()
		g      errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for _, country := range r.settings.Countries {
		country := country
		g.Go(func() error {
			req := domain.ScrapeRequest{Platform: r.settings.Platform, CountryCode: country, Kind: r.settings.Kind}
			ranked, err := p.source.FetchTopTitles(ctx, req)
			if err != nil {
				stageErr := &domain.StageError{Stage: domain.StageScrape, Subject: country, Err: err}
				r.logger.Warn("country skipped", "step", domain.StageScrape, "country", country, "error", stageErr)
				return nil
			}
			if n := r.settings.TopCount; n > 0 && len(ranked) > n {
				ranked = ranked[:n]
			}
			r.logger.Debug("country scraped", "country", country, "titles", len(ranked))

			mu.Lock()
			titles.Add(ranked...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return titles
}

// reconcile decides unmatched/skip/add for one title and updates the index in place.
func (p *Pipeline) reconcile(ctx context.Context, r *run, title string) {
	log := r.logger.With("title", title)

	match, ok := p.resolver.Search(ctx, title, r.settings.Kind)
	if !ok || match.ExternalID <= 0 {
		r.outcome.Unmatched++
		log.Info("no metadata match", "step", domain.StageResolve)
		return
	}
	log = log.With("tmdb_id", match.ExternalID)

	if r.index.Has(domain.SchemeTMDB, match.ExternalID) {
		r.outcome.Matched++
		r.outcome.Skipped++
		log.Info("already in library", "step", domain.StageResolve)
		return
	}

	if r.settings.Kind == domain.KindMovie {
		r.outcome.Matched++
		p.submit(ctx, r, log, domain.Candidate{Title: title, Match: match})
		return
	}

	crossRef, ok := p.resolver.CrossReference(ctx, match.ExternalID)
	if !ok || crossRef <= 0 {
		r.outcome.Unmatched++
		log.Info("no tvdb cross reference", "step", domain.StageCrossRef)
		return
	}
	match.CrossRefID = crossRef
	log = log.With("tvdb_id", crossRef)
	r.outcome.Matched++

	if r.index.Has(domain.SchemeTVDB, crossRef) {
		r.index.Put(domain.SchemeTMDB, match.ExternalID, nil)
		r.outcome.Skipped++
		log.Info("already in library", "step", domain.StageCrossRef)
		return
	}

	record, ok := p.series.Lookup(ctx, crossRef)
	if !ok {
		r.outcome.Failed++
		log.Warn("series lookup failed", "step", domain.StageLookup,
			"error", &domain.StageError{Stage: domain.StageLookup, Subject: title, Err: errors.New("no lookup record")})
		return
	}

	p.submit(ctx, r, log, domain.Candidate{Title: title, Match: match, Record: record})
}

func (p *Pipeline) submit(ctx context.Context, r *run, log *slog.Logger, item domain.Candidate) {
	id, ok := r.target.AddItem(ctx, item)
	if !ok {
		r.outcome.Failed++
		log.Warn("submission failed", "step", domain.StageSubmit,
			"error", &domain.StageError{Stage: domain.StageSubmit, Subject: item.Title, Err: errors.New("no server id in response")})
		return
	}

	r.index.Put(domain.SchemeTMDB, item.Match.ExternalID, id)
	r.index.Put(domain.SchemeTVDB, item.Match.CrossRefID, id)
	r.outcome.Added++
	log.Info("added to library", "step", domain.StageSubmit, "target", r.target.Name(), "target_id", id)
}
