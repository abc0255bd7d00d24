package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaTrend/internal/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	lists    map[string][]string
	failures map[string]error
	calls    []string
}

func (f *fakeSource) FetchTopTitles(_ context.Context, req domain.ScrapeRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.CountryCode)
	if err := f.failures[req.CountryCode]; err != nil {
		return nil, err
	}
	return f.lists[req.CountryCode], nil
}

type fakeResolver struct {
	mu        sync.Mutex
	matches   map[string]domain.MetadataMatch
	crossRefs map[int]int
	searches  []string
	crossed   []int
}

func (f *fakeResolver) Search(_ context.Context, query string, _ domain.MediaKind) (domain.MetadataMatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	m, ok := f.matches[query]
	return m, ok
}

func (f *fakeResolver) CrossReference(_ context.Context, id int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crossed = append(f.crossed, id)
	ref, ok := f.crossRefs[id]
	return ref, ok
}

type fakeTarget struct {
	name     string
	existing domain.LibraryIndex
	listErr  error
	rejected map[int]bool
	records  map[int]domain.LookupRecord

	listCalls int
	lookups   []int
	added     []domain.Candidate
	nextID    int
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) ListExisting(context.Context) (domain.LibraryIndex, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := domain.LibraryIndex{}
	for k, v := range f.existing {
		idx[k] = v
	}
	return idx, nil
}

func (f *fakeTarget) AddItem(_ context.Context, item domain.Candidate) (int, bool) {
	if f.rejected[item.Match.ExternalID] {
		return 0, false
	}
	f.added = append(f.added, item)
	f.nextID++
	if f.existing == nil {
		f.existing = domain.LibraryIndex{}
	}
	f.existing.Put(domain.SchemeTMDB, item.Match.ExternalID, f.nextID)
	f.existing.Put(domain.SchemeTVDB, item.Match.CrossRefID, f.nextID)
	return f.nextID, true
}

func (f *fakeTarget) Lookup(_ context.Context, id int) (domain.LookupRecord, bool) {
	f.lookups = append(f.lookups, id)
	rec, ok := f.records[id]
	return rec, ok
}

func (f *fakeTarget) addedTitles() []string {
	out := make([]string, 0, len(f.added))
	for _, c := range f.added {
		out = append(out, c.Title)
	}
	sort.Strings(out)
	return out
}

var netflix = domain.Platform{ID: "netflix", Name: "Netflix", Slug: "netflix", Scanner: "tudum"}

func movieSettings(countries ...string) RunSettings {
	return RunSettings{
		JobKey:      "netflix_movies",
		Platform:    netflix,
		Kind:        domain.KindMovie,
		Countries:   countries,
		TopCount:    10,
		MetadataKey: "tmdb",
		TargetKey:   "radarr",
	}
}

func seriesSettings(countries ...string) RunSettings {
	s := movieSettings(countries...)
	s.JobKey = "netflix_series"
	s.Kind = domain.KindSeries
	s.TargetKey = "sonarr"
	return s
}

func TestPipelineMergesCountriesIntoOneSet(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{
		"US": {"Alpha", "Beta"},
		"DE": {"Beta", "Gamma"},
	}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{
		"Alpha": {ExternalID: 1, Title: "Alpha", ReleaseYear: 2024},
		"Beta":  {ExternalID: 2, Title: "Beta"},
		"Gamma": {ExternalID: 3, Title: "Gamma", ReleaseYear: 2023},
	}}
	movies := &fakeTarget{name: "radarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), movieSettings("US", "DE"))
	require.NoError(t, err)

	sort.Strings(resolver.searches)
	if diff := cmp.Diff([]string{"Alpha", "Beta", "Gamma"}, resolver.searches); diff != "" {
		t.Fatalf("unexpected resolver calls (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, outcome.Scraped)
	assert.Equal(t, 3, outcome.Matched)
	assert.Equal(t, 3, outcome.Added)
	assert.Equal(t, "netflix", outcome.Source)
	assert.Equal(t, "radarr", outcome.Target)
	assert.NotEmpty(t, outcome.RunID)
	assert.Equal(t, 1, movies.listCalls)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, movies.addedTitles())
}

func TestPipelineMissingMetadataKeyAbortsBeforeIO(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha"}}}
	resolver := &fakeResolver{}
	movies := &fakeTarget{name: "radarr"}

	settings := movieSettings("US")
	settings.MetadataKey = ""

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), settings)

	require.ErrorIs(t, err, domain.ErrPreconditionMissing)
	assert.Empty(t, source.calls)
	assert.Empty(t, resolver.searches)
	assert.Zero(t, movies.listCalls)
	assert.Zero(t, outcome.Scraped+outcome.Matched+outcome.Added+outcome.Skipped+outcome.Unmatched+outcome.Failed)
	assert.Contains(t, outcome.Error, "tmdb api key")
}

func TestPipelineMissingTargetKeyAborts(t *testing.T) {
	t.Parallel()

	settings := seriesSettings("US")
	settings.TargetKey = " "

	series := &fakeTarget{name: "sonarr"}
	p := NewPipeline(PipelineDeps{Source: &fakeSource{}, Resolver: &fakeResolver{}, Series: series})
	_, err := p.Run(context.Background(), settings)

	var pe *domain.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "sonarr api key", pe.Field)
	assert.Zero(t, series.listCalls)
}

func TestPipelineSkipsExistingItems(t *testing.T) {
	t.Parallel()

	existing := domain.LibraryIndex{}
	existing.Put(domain.SchemeTMDB, 1, 99)

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{"Alpha": {ExternalID: 1}}}
	movies := &fakeTarget{name: "radarr", existing: existing}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Skipped)
	assert.Zero(t, outcome.Added)
	assert.Empty(t, movies.added)
}

func TestPipelineSeriesWithoutCrossReferenceIsUnmatched(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Arcane"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{"Arcane": {ExternalID: 94605}}}
	series := &fakeTarget{name: "sonarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Series: series})
	outcome, err := p.Run(context.Background(), seriesSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Unmatched)
	assert.Zero(t, outcome.Matched)
	assert.Equal(t, []int{94605}, resolver.crossed)
	assert.Empty(t, series.lookups)
	assert.Empty(t, series.added)
}

func TestPipelineSeriesChecksBothIdentifierSchemes(t *testing.T) {
	t.Parallel()

	existing := domain.LibraryIndex{}
	existing.Put(domain.SchemeTMDB, 1396, 1)   // Breaking Bad, known by tmdb id
	existing.Put(domain.SchemeTVDB, 371028, 2) // Arcane, known only by tvdb id

	source := &fakeSource{lists: map[string][]string{"US": {"Breaking Bad", "Arcane", "Wednesday"}}}
	resolver := &fakeResolver{
		matches: map[string]domain.MetadataMatch{
			"Breaking Bad": {ExternalID: 1396},
			"Arcane":       {ExternalID: 94605},
			"Wednesday":    {ExternalID: 119051},
		},
		crossRefs: map[int]int{94605: 371028, 119051: 397060},
	}
	series := &fakeTarget{
		name:     "sonarr",
		existing: existing,
		records:  map[int]domain.LookupRecord{397060: {"title": "Wednesday", "tvdbId": 397060}},
	}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Series: series})
	outcome, err := p.Run(context.Background(), seriesSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Matched)
	assert.Equal(t, 2, outcome.Skipped)
	assert.Equal(t, 1, outcome.Added)

	sort.Ints(resolver.crossed)
	assert.Equal(t, []int{94605, 119051}, resolver.crossed, "tmdb hit must not trigger a cross reference")
	assert.Equal(t, []int{397060}, series.lookups)
	require.Len(t, series.added, 1)
	assert.Equal(t, 397060, series.added[0].Match.CrossRefID)
	assert.Equal(t, "Wednesday", series.added[0].Record.Title())
}

func TestPipelineSeriesLookupFailureCountsAsFailed(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Arcane"}}}
	resolver := &fakeResolver{
		matches:   map[string]domain.MetadataMatch{"Arcane": {ExternalID: 94605}},
		crossRefs: map[int]int{94605: 371028},
	}
	series := &fakeTarget{name: "sonarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Series: series})
	outcome, err := p.Run(context.Background(), seriesSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, 1, outcome.Matched)
	assert.Empty(t, series.added)
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha", "Beta"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{
		"Alpha": {ExternalID: 1},
		"Beta":  {ExternalID: 2},
	}}
	movies := &fakeTarget{name: "radarr"}
	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})

	first, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 2, first.Added)
	assert.Zero(t, second.Added)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, movies.added, 2)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipelineCountryFailureIsIsolated(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		lists:    map[string][]string{"DE": {"Gamma"}, "FR": {"Delta"}},
		failures: map[string]error{"US": errors.New("connection reset")},
	}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{
		"Gamma": {ExternalID: 3},
		"Delta": {ExternalID: 4},
	}}
	movies := &fakeTarget{name: "radarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies, ScrapeConcurrency: 1})
	outcome, err := p.Run(context.Background(), movieSettings("US", "DE", "FR"))
	require.NoError(t, err)

	assert.Len(t, source.calls, 3)
	assert.Equal(t, 2, outcome.Scraped)
	assert.Equal(t, []string{"Delta", "Gamma"}, movies.addedTitles())
}

func TestPipelineDeduplicatesByTargetID(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Spider-Man: No Way Home"}, "DE": {"Spider-Man No Way Home"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{
		"Spider-Man: No Way Home": {ExternalID: 634649},
		"Spider-Man No Way Home":  {ExternalID: 634649},
	}}
	movies := &fakeTarget{name: "radarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), movieSettings("US", "DE"))
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Scraped)
	assert.Equal(t, 1, outcome.Added)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Len(t, movies.added, 1)
}

func TestPipelineCountsUnmatchedAndFailed(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha", "Beta", "Unknown"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{
		"Alpha": {ExternalID: 1},
		"Beta":  {ExternalID: 2},
	}}
	movies := &fakeTarget{name: "radarr", rejected: map[int]bool{2: true}}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Scraped)
	assert.Equal(t, 2, outcome.Matched)
	assert.Equal(t, 1, outcome.Unmatched)
	assert.Equal(t, 1, outcome.Added)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, outcome.Matched, outcome.Added+outcome.Skipped+outcome.Failed)
}

func TestPipelinePassesUnknownYearThrough(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Untitled"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{"Untitled": {ExternalID: 5, ReleaseYear: domain.YearFromDate("0000-00-00")}}}
	movies := &fakeTarget{name: "radarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	_, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)

	require.Len(t, movies.added, 1)
	assert.False(t, movies.added[0].Match.HasYear())
}

func TestPipelineTruncatesToTopCount(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"A", "B", "C", "D"}}}
	resolver := &fakeResolver{}
	settings := movieSettings("US")
	settings.TopCount = 2

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: &fakeTarget{name: "radarr"}})
	outcome, err := p.Run(context.Background(), settings)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Scraped)
	assert.Equal(t, 2, outcome.Unmatched)
}

func TestPipelineLibraryFailureContinues(t *testing.T) {
	t.Parallel()

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{"Alpha": {ExternalID: 1}}}
	movies := &fakeTarget{name: "radarr", listErr: errors.New("503")}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	outcome, err := p.Run(context.Background(), movieSettings("US"))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Added)
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{lists: map[string][]string{"US": {"Alpha"}}}
	resolver := &fakeResolver{matches: map[string]domain.MetadataMatch{"Alpha": {ExternalID: 1}}}
	movies := &fakeTarget{name: "radarr"}

	p := NewPipeline(PipelineDeps{Source: source, Resolver: resolver, Movies: movies})
	_, err := p.Run(ctx, movieSettings("US"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, movies.added)
}
