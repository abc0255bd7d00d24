package arr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

// Radarr submits movies keyed by their TMDB id.
type Radarr struct {
	api      *client
	settings Settings
}

var _ ports.Target = (*Radarr)(nil)

// NewRadarr builds the movie connector; a nil client gets the default timeout.
func NewRadarr(settings Settings, httpClient *http.Client, log *slog.Logger) *Radarr {
	return &Radarr{
		api:      newClient(settings.URL, settings.APIKey, httpClient, log),
		settings: settings,
	}
}

// Name identifies the target in outcomes and logs.
func (r *Radarr) Name() string {
	return "radarr"
}

// ListExisting indexes the library by tmdbId.
func (r *Radarr) ListExisting(ctx context.Context) (domain.LibraryIndex, error) {
	var movies []struct {
		ID     int    `json:"id"`
		TmdbID int    `json:"tmdbId"`
		Title  string `json:"title"`
	}
	if err := r.api.getJSON(ctx, "/api/v3/movie", &movies); err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	idx := make(domain.LibraryIndex, len(movies))
	for _, m := range movies {
		idx.Put(domain.SchemeTMDB, m.TmdbID, m.ID)
	}
	r.api.debug("radarr library loaded", "movies", len(movies))
	return idx, nil
}

// AddItem posts the movie; success requires an id in the response.
func (r *Radarr) AddItem(ctx context.Context, item domain.Candidate) (int, bool) {
	payload := map[string]any{
		"tmdbId":           item.Match.ExternalID,
		"title":            item.Title,
		"qualityProfileId": r.settings.QualityProfileID,
		"rootFolderPath":   r.settings.RootFolderPath,
		"monitored":        true,
		"addOptions": map[string]any{
			"searchForMovie": r.settings.SearchOnAdd,
		},
	}
	if item.Match.HasYear() {
		payload["year"] = item.Match.ReleaseYear
	}

	var resp map[string]any
	if err := r.api.postJSON(ctx, "/api/v3/movie", payload, &resp); err != nil {
		r.api.warn("radarr add failed", "title", item.Title, "tmdb_id", item.Match.ExternalID, "error", err)
		return 0, false
	}

	id, ok := addedID(resp)
	if !ok {
		r.api.warn("radarr add returned no id", "title", item.Title, "tmdb_id", item.Match.ExternalID)
		return 0, false
	}
	return id, true
}

// QualityProfiles lists the configured quality tiers.
func (r *Radarr) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	return r.api.qualityProfiles(ctx)
}

// RootFolders lists the library paths.
func (r *Radarr) RootFolders(ctx context.Context) ([]RootFolder, error) {
	return r.api.rootFolders(ctx)
}
