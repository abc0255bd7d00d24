package arr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
)

// Sonarr submits series keyed by their TVDB id, using its own lookup record as payload.
type Sonarr struct {
	api      *client
	settings Settings
}

var _ ports.SeriesTarget = (*Sonarr)(nil)

// NewSonarr builds the series connector; a nil client gets the default timeout.
func NewSonarr(settings Settings, httpClient *http.Client, log *slog.Logger) *Sonarr {
	return &Sonarr{
		api:      newClient(settings.URL, settings.APIKey, httpClient, log),
		settings: settings,
	}
}

// Name identifies the target in outcomes and logs.
func (s *Sonarr) Name() string {
	return "sonarr"
}

// ListExisting indexes the library by tvdbId and, when present, tmdbId.
func (s *Sonarr) ListExisting(ctx context.Context) (domain.LibraryIndex, error) {
	var series []struct {
		ID     int `json:"id"`
		TvdbID int `json:"tvdbId"`
		TmdbID int `json:"tmdbId"`
	}
	if err := s.api.getJSON(ctx, "/api/v3/series", &series); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	idx := make(domain.LibraryIndex, len(series)*2)
	for _, item := range series {
		idx.Put(domain.SchemeTVDB, item.TvdbID, item.ID)
		idx.Put(domain.SchemeTMDB, item.TmdbID, item.ID)
	}
	s.api.debug("sonarr library loaded", "series", len(series))
	return idx, nil
}

// Lookup fetches the record Sonarr builds for a TVDB id.
func (s *Sonarr) Lookup(ctx context.Context, tvdbID int) (domain.LookupRecord, bool) {
	path := "/api/v3/series/lookup?term=" + url.QueryEscape("tvdb:"+strconv.Itoa(tvdbID))

	var records []domain.LookupRecord
	if err := s.api.getJSON(ctx, path, &records); err != nil {
		s.api.warn("sonarr lookup failed", "tvdb_id", tvdbID, "error", err)
		return nil, false
	}
	if len(records) == 0 || records[0] == nil {
		s.api.warn("sonarr lookup empty", "tvdb_id", tvdbID)
		return nil, false
	}
	return records[0], true
}

// AddItem posts the looked-up record augmented with the run defaults.
func (s *Sonarr) AddItem(ctx context.Context, item domain.Candidate) (int, bool) {
	if item.Record == nil {
		s.api.warn("sonarr add without lookup record", "title", item.Title, "tvdb_id", item.Match.CrossRefID)
		return 0, false
	}

	payload := make(map[string]any, len(item.Record)+4)
	for k, v := range item.Record {
		payload[k] = v
	}
	payload["qualityProfileId"] = s.settings.QualityProfileID
	payload["rootFolderPath"] = s.settings.RootFolderPath
	payload["monitored"] = true
	payload["addOptions"] = map[string]any{
		"searchForMissingEpisodes": s.settings.SearchOnAdd,
		"monitor":                  "all",
	}

	var resp map[string]any
	if err := s.api.postJSON(ctx, "/api/v3/series", payload, &resp); err != nil {
		s.api.warn("sonarr add failed", "title", item.Title, "tvdb_id", item.Match.CrossRefID, "error", err)
		return 0, false
	}

	id, ok := addedID(resp)
	if !ok {
		s.api.warn("sonarr add returned no id", "title", item.Title, "tvdb_id", item.Match.CrossRefID)
		return 0, false
	}
	return id, true
}

// QualityProfiles lists the configured quality tiers.
func (s *Sonarr) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	return s.api.qualityProfiles(ctx)
}

// RootFolders lists the library paths.
func (s *Sonarr) RootFolders(ctx context.Context) ([]RootFolder, error) {
	return s.api.rootFolders(ctx)
}
