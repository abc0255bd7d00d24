package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/scanner"
)

const (
	flixPatrolBaseURL = "https://flixpatrol.com/top10"
	overallHeader     = "TOP 10 Overall"
)

// Page is a client-side rendered document captured by a Renderer.
type Page struct {
	Title      string
	HTML       string
	TabClicked bool
}

// Renderer drives a browser session: load, optional tab click, bounded waits, capture.
type Renderer interface {
	Render(ctx context.Context, pageURL, tabText string) (Page, error)
}

// FlixPatrolScanner extracts rankings for services FlixPatrol aggregates (Disney+, Prime, etc.).
type FlixPatrolScanner struct {
	renderer Renderer
	baseURL  string
	logger   *slog.Logger
}

var _ scanner.Scanner = (*FlixPatrolScanner)(nil)

// NewFlixPatrolScanner wires the browser renderer.
func NewFlixPatrolScanner(renderer Renderer, log *slog.Logger) *FlixPatrolScanner {
	return &FlixPatrolScanner{renderer: renderer, baseURL: flixPatrolBaseURL, logger: log}
}

// Name identifies the strategy inside the registry.
func (s *FlixPatrolScanner) Name() string {
	return "flixpatrol"
}

// Scan renders the service/country page and parses the table for the requested kind.
func (s *FlixPatrolScanner) Scan(ctx context.Context, req domain.ScrapeRequest) ([]string, error) {
	country, err := countrySlug(flixPatrolCountries, req.CountryCode)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("flixpatrol renderer is not configured")
	}

	pageURL := fmt.Sprintf("%s/%s/%s/", s.baseURL, req.Platform.Slug, country)
	tab := kindHeader(req.Kind)

	s.debug("render flixpatrol page", "url", pageURL, "tab", tab)
	page, err := s.renderer.Render(ctx, pageURL, tab)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	if isNotFoundPage(page) {
		s.warn("flixpatrol page not found", "url", pageURL)
		return nil, nil
	}
	if !page.TabClicked {
		s.warn("flixpatrol tab not found, using default view", "tab", tab, "url", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	card, header := findCard(doc, tab)
	if card == nil {
		s.warn("flixpatrol table not found", "primary", tab, "fallback", overallHeader, "url", pageURL)
		return nil, nil
	}
	s.debug("flixpatrol table selected", "header", header)

	return parseCardTable(card), nil
}

func kindHeader(kind domain.MediaKind) string {
	if kind == domain.KindSeries {
		return "TV Shows"
	}
	return "Movies"
}

func isNotFoundPage(page Page) bool {
	title := strings.ToLower(page.Title)
	if strings.Contains(title, "page not found") || strings.Contains(title, "404") {
		return true
	}
	return strings.Contains(strings.ToLower(page.HTML), "page not found")
}

// findCard prefers the kind-specific card and falls back to the combined ranking.
func findCard(doc *goquery.Document, primary string) (*goquery.Selection, string) {
	cards := doc.Find("div.card")

	var (
		found  *goquery.Selection
		header string
	)
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		text := strings.TrimSpace(card.Find("h3").First().Text())
		if text == primary || strings.Contains(text, "TOP 10 "+primary) {
			found, header = card, text
			return false
		}
		return true
	})
	if found != nil {
		return found, header
	}

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		text := strings.TrimSpace(card.Find("h3").First().Text())
		if strings.Contains(text, overallHeader) {
			found, header = card, text
			return false
		}
		return true
	})
	return found, header
}

// parseCardTable reads the first link of each row; the rank cell may or may not precede it.
func parseCardTable(card *goquery.Selection) []string {
	table := card.Find("table.card-table").First()
	if table.Length() == 0 {
		return nil
	}

	var titles []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("a").First().Text())
		if title != "" {
			titles = append(titles, title)
		}
	})
	return titles
}

func (s *FlixPatrolScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *FlixPatrolScanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
