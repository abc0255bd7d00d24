package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 20 * time.Second
	errBodyLimit = 512
)

// Settings are the run-level defaults applied to every submission.
type Settings struct {
	URL              string
	APIKey           string
	QualityProfileID int
	RootFolderPath   string
	SearchOnAdd      bool
}

// HTTPStatusError reports a non-2xx answer from a target.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// QualityProfile is one entry of /api/v3/qualityprofile.
type QualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RootFolder is one entry of /api/v3/rootfolder.
type RootFolder struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// client talks to the v3 API shared by Radarr and Sonarr.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func newClient(baseURL, apiKey string, httpClient *http.Client, log *slog.Logger) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: writeTimeout}
	}
	return &client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    httpClient,
		logger:  log,
	}
}

func (c *client) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *client) postJSON(ctx context.Context, path string, payload any, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, v)
}

func (c *client) do(ctx context.Context, method, path string, body []byte, v any) error {
	if !c.configured() {
		return fmt.Errorf("target url or api key missing")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return &HTTPStatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// qualityProfiles returns the profiles sorted by id.
func (c *client) qualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var profiles []QualityProfile
	if err := c.getJSON(ctx, "/api/v3/qualityprofile", &profiles); err != nil {
		return nil, fmt.Errorf("list quality profiles: %w", err)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (c *client) rootFolders(ctx context.Context) ([]RootFolder, error) {
	var folders []RootFolder
	if err := c.getJSON(ctx, "/api/v3/rootfolder", &folders); err != nil {
		return nil, fmt.Errorf("list root folders: %w", err)
	}
	return folders, nil
}

// addedID reads the server-assigned id; the response is the created record.
func addedID(resp map[string]any) (int, bool) {
	raw, ok := resp["id"]
	if !ok {
		return 0, false
	}
	id, ok := raw.(float64)
	if !ok || id <= 0 {
		return 0, false
	}
	return int(id), true
}

func (c *client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *client) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
