package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MediaKind selects the downstream target and the metadata search endpoint.
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "series"
)

// ParseMediaKind accepts the job-key spelling ("movies", "series") as well as the singular forms.
func ParseMediaKind(value string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies":
		return KindMovie, nil
	case "series", "tv", "show", "shows":
		return KindSeries, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", value)
	}
}

// JobSuffix is the plural form used inside job keys.
func (k MediaKind) JobSuffix() string {
	if k == KindSeries {
		return "series"
	}
	return "movies"
}

// Platform is one streaming service from the supported catalog.
type Platform struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Slug    string `json:"slug" yaml:"slug"`
	Scanner string `json:"scanner" yaml:"scanner"`
}

// ScrapeRequest is built per source-adapter call.
type ScrapeRequest struct {
	Platform    Platform
	CountryCode string
	Kind        MediaKind
}

// TitleSet accumulates raw scraped titles deduplicated by exact string equality.
type TitleSet map[string]struct{}

// NewTitleSet builds a set from the provided titles.
func NewTitleSet(titles ...string) TitleSet {
	set := make(TitleSet, len(titles))
	set.Add(titles...)
	return set
}

// Add inserts every non-empty title.
func (s TitleSet) Add(titles ...string) {
	for _, title := range titles {
		if title == "" {
			continue
		}
		s[title] = struct{}{}
	}
}

// Contains reports whether the exact title is present.
func (s TitleSet) Contains(title string) bool {
	_, ok := s[title]
	return ok
}

// Sorted returns the titles in lexical order; only used for stable logs and tests.
func (s TitleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for title := range s {
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}

// MetadataMatch is the first search result from the metadata database.
type MetadataMatch struct {
	ExternalID  int
	Title       string
	ReleaseYear int
	CrossRefID  int
}

// HasYear reports whether the release year is known.
func (m MetadataMatch) HasYear() bool {
	return m.ReleaseYear > 0
}

// YearFromDate reads the leading four digits of a release-date string; anything else is 0.
func YearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

// IDScheme names an identifier namespace.
type IDScheme string

const (
	SchemeTMDB IDScheme = "tmdb"
	SchemeTVDB IDScheme = "tvdb"
)

// LibraryKey identifies an item in a target library under one scheme.
type LibraryKey struct {
	Scheme IDScheme
	ID     int
}

// LibraryIndex maps identifiers to the target's existing record handle.
type LibraryIndex map[LibraryKey]any

// Has reports whether the identifier is already present.
func (idx LibraryIndex) Has(scheme IDScheme, id int) bool {
	if idx == nil || id <= 0 {
		return false
	}
	_, ok := idx[LibraryKey{Scheme: scheme, ID: id}]
	return ok
}

// Put records the identifier; zero ids are ignored.
func (idx LibraryIndex) Put(scheme IDScheme, id int, handle any) {
	if idx == nil || id <= 0 {
		return
	}
	idx[LibraryKey{Scheme: scheme, ID: id}] = handle
}

// Count returns the number of keys under one scheme.
func (idx LibraryIndex) Count(scheme IDScheme) int {
	n := 0
	for key := range idx {
		if key.Scheme == scheme {
			n++
		}
	}
	return n
}

// LookupRecord is the full series record returned by the series target's lookup endpoint.
type LookupRecord map[string]any

// Title returns the record's title field when present.
func (r LookupRecord) Title() string {
	if r == nil {
		return ""
	}
	if title, ok := r["title"].(string); ok {
		return title
	}
	return ""
}

// Candidate is one item submitted to a target.
type Candidate struct {
	Title  string
	Match  MetadataMatch
	Record LookupRecord
}

// RunOutcome summarises one pipeline invocation.
type RunOutcome struct {
	RunID     string        `json:"runId"`
	JobKey    string        `json:"jobKey,omitempty"`
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Kind      MediaKind     `json:"kind"`
	Scraped   int           `json:"titlesScraped"`
	Matched   int           `json:"titlesMatched"`
	Unmatched int           `json:"titlesUnmatched"`
	Added     int           `json:"titlesAdded"`
	Skipped   int           `json:"titlesSkipped"`
	Failed    int           `json:"titlesFailed"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Summary renders a one-line report.
func (o RunOutcome) Summary() string {
	line := fmt.Sprintf("%s (%s) -> %s: scraped=%d matched=%d added=%d skipped=%d unmatched=%d failed=%d",
		o.Source, o.Kind, o.Target, o.Scraped, o.Matched, o.Added, o.Skipped, o.Unmatched, o.Failed)
	if o.Error != "" {
		line += " error=" + o.Error
	}
	return line
}
