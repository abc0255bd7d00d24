package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	gotmdb "github.com/ryanbradynd05/go-tmdb"
	"golang.org/x/time/rate"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultLanguage = "en-US"
	cacheTTL        = 6 * time.Hour
	cacheSweep      = 30 * time.Minute
)

// Client is the subset of *gotmdb.TMDb the resolver calls.
type Client interface {
	SearchMovie(name string, options map[string]string) (*gotmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*gotmdb.TvSearchResults, error)
	GetTvExternalIds(id int, options map[string]string) (*gotmdb.TvExternalIds, error)
}

// Options tune the resolver; zero values use the defaults.
type Options struct {
	Timeout   time.Duration
	Language  string
	RateLimit rate.Limit
	Burst     int
}

// Resolver maps scraped titles to TMDB ids. Every failure is logged and reported as a miss.
type Resolver struct {
	client  Client
	apiKey  string
	timeout time.Duration
	lang    string
	limiter *rate.Limiter
	cache   *cache.Cache
	logger  *slog.Logger
}

var _ ports.MetadataResolver = (*Resolver)(nil)

// NewResolver builds a resolver backed by the public TMDB API.
func NewResolver(apiKey string, opts Options, log *slog.Logger) *Resolver {
	client := gotmdb.Init(gotmdb.Config{
		APIKey:   apiKey,
		Proxies:  nil,
		UseProxy: false,
	})
	return NewResolverWithClient(client, apiKey, opts, log)
}

// NewResolverWithClient injects the client; tests pass a fake.
func NewResolverWithClient(client Client, apiKey string, opts Options, log *slog.Logger) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.RateLimit <= 0 {
		// TMDB allows roughly 40 requests per second.
		opts.RateLimit = rate.Limit(35)
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Resolver{
		client:  client,
		apiKey:  strings.TrimSpace(apiKey),
		timeout: opts.Timeout,
		lang:    opts.Language,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		cache:   cache.New(cacheTTL, cacheSweep),
		logger:  log,
	}
}

// Search returns the first search result for query. Only hits are cached.
func (r *Resolver) Search(ctx context.Context, query string, kind domain.MediaKind) (domain.MetadataMatch, bool) {
	query = strings.TrimSpace(query)
	if r.apiKey == "" || r.client == nil || query == "" {
		return domain.MetadataMatch{}, false
	}

	key := "search:" + string(kind) + ":" + query
	if cached, found := r.cache.Get(key); found {
		if match, ok := cached.(domain.MetadataMatch); ok {
			return match, true
		}
	}

	var (
		match domain.MetadataMatch
		found bool
	)
	err := r.call(ctx, func() error {
		var err error
		if kind == domain.KindSeries {
			match, found, err = r.searchTv(query)
		} else {
			match, found, err = r.searchMovie(query)
		}
		return err
	})
	if err != nil {
		r.warn("metadata search failed", "query", query, "kind", kind, "error", err)
		return domain.MetadataMatch{}, false
	}
	if !found {
		r.debug("metadata search without result", "query", query, "kind", kind)
		return domain.MetadataMatch{}, false
	}

	r.cache.Set(key, match, cache.DefaultExpiration)
	return match, true
}

// CrossReference returns the TVDB id of a TMDB series.
func (r *Resolver) CrossReference(ctx context.Context, externalID int) (int, bool) {
	if r.apiKey == "" || r.client == nil || externalID <= 0 {
		return 0, false
	}

	key := "tvdb:" + strconv.Itoa(externalID)
	if cached, found := r.cache.Get(key); found {
		if id, ok := cached.(int); ok {
			return id, true
		}
	}

	var tvdbID int
	err := r.call(ctx, func() error {
		ids, err := r.client.GetTvExternalIds(externalID, nil)
		if err != nil {
			return err
		}
		if ids != nil {
			tvdbID = ids.TvdbID
		}
		return nil
	})
	if err != nil {
		r.warn("external id lookup failed", "tmdb_id", externalID, "error", err)
		return 0, false
	}
	if tvdbID <= 0 {
		r.debug("series has no tvdb id", "tmdb_id", externalID)
		return 0, false
	}

	r.cache.Set(key, tvdbID, cache.DefaultExpiration)
	return tvdbID, true
}

func (r *Resolver) searchMovie(query string) (domain.MetadataMatch, bool, error) {
	results, err := r.client.SearchMovie(query, map[string]string{"language": r.lang})
	if err != nil {
		return domain.MetadataMatch{}, false, err
	}
	if results == nil || len(results.Results) == 0 {
		return domain.MetadataMatch{}, false, nil
	}

	first := results.Results[0]
	return domain.MetadataMatch{
		ExternalID:  first.ID,
		Title:       first.Title,
		ReleaseYear: domain.YearFromDate(first.ReleaseDate),
	}, first.ID > 0, nil
}

func (r *Resolver) searchTv(query string) (domain.MetadataMatch, bool, error) {
	results, err := r.client.SearchTv(query, map[string]string{"language": r.lang})
	if err != nil {
		return domain.MetadataMatch{}, false, err
	}
	if results == nil || len(results.Results) == 0 {
		return domain.MetadataMatch{}, false, nil
	}

	first := results.Results[0]
	return domain.MetadataMatch{
		ExternalID:  first.ID,
		Title:       first.Name,
		ReleaseYear: domain.YearFromDate(first.FirstAirDate),
	}, first.ID > 0, nil
}

// call waits for the limiter and bounds fn by the resolver timeout.
// The client has no context support, so an abandoned call finishes in the background.
func (r *Resolver) call(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("tmdb request: %w", ctx.Err())
	}
}

func (r *Resolver) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Resolver) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
