package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/scanner"
)

const (
	tudumBaseURL = "https://www.netflix.com/tudum/top10"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)"
)

// TudumScanner reads Netflix's server-rendered top 10 pages.
type TudumScanner struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ scanner.Scanner = (*TudumScanner)(nil)

// NewTudumScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewTudumScanner(client *http.Client, log *slog.Logger) *TudumScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &TudumScanner{client: client, baseURL: tudumBaseURL, logger: log}
}

// WithBaseURL points the scanner at another host; used by tests.
func (s *TudumScanner) WithBaseURL(base string) *TudumScanner {
	s.baseURL = strings.TrimSuffix(base, "/")
	return s
}

// Name identifies the strategy inside the registry.
func (s *TudumScanner) Name() string {
	return "tudum"
}

// Scan fetches one country page and extracts its ranked titles.
func (s *TudumScanner) Scan(ctx context.Context, req domain.ScrapeRequest) ([]string, error) {
	pageURL, err := s.pageURL(req.CountryCode, req.Kind)
	if err != nil {
		return nil, err
	}

	s.debug("fetch tudum page", "url", pageURL)
	doc, found, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("country %s: %w", req.CountryCode, err)
	}
	if !found {
		s.warn("tudum page not found", "url", pageURL)
		return nil, nil
	}

	titles := extractTudumTitles(doc)
	s.debug("tudum titles extracted", "country", req.CountryCode, "count", len(titles))
	return titles, nil
}

func (s *TudumScanner) pageURL(country string, kind domain.MediaKind) (string, error) {
	slug, err := countrySlug(tudumCountries, country)
	if err != nil {
		return "", err
	}

	u := s.baseURL
	if slug != "" {
		u += "/" + slug
	}
	if kind == domain.KindSeries {
		u += "/tv"
	}
	return u, nil
}

func (s *TudumScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("tudum returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse document: %w", err)
	}

	return doc, true, nil
}

// extractTudumTitles keeps the <ul> whose items yield the most image alt texts.
// The page's class names are generated, so structure is the only stable signal.
func extractTudumTitles(doc *goquery.Document) []string {
	var best []string

	doc.Find("ul").Each(func(_ int, ul *goquery.Selection) {
		var current []string
		ul.Find("li").Each(func(_ int, li *goquery.Selection) {
			alt, ok := li.Find("img").First().Attr("alt")
			if !ok {
				return
			}
			if title := strings.TrimSpace(alt); title != "" {
				current = append(current, title)
			}
		})
		if len(current) > len(best) {
			best = current
		}
	})

	return best
}

func (s *TudumScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *TudumScanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
