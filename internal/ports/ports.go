package ports

import (
	"context"
	"time"

	"MediaTrend/internal/domain"
)

// TitleSource returns the ranked top titles of one platform for one country and kind.
// An empty slice with a nil error means the list was absent; an error means the fetch itself failed.
type TitleSource interface {
	FetchTopTitles(ctx context.Context, req domain.ScrapeRequest) ([]string, error)
}

// MetadataResolver maps free-text titles to metadata-database ids. Both calls fail soft.
type MetadataResolver interface {
	Search(ctx context.Context, query string, kind domain.MediaKind) (domain.MetadataMatch, bool)
	CrossReference(ctx context.Context, externalID int) (int, bool)
}

// Target is a downstream library manager that receives new items.
type Target interface {
	Name() string
	ListExisting(ctx context.Context) (domain.LibraryIndex, error)
	AddItem(ctx context.Context, item domain.Candidate) (int, bool)
}

// SeriesTarget needs a lookup record before it accepts an add.
type SeriesTarget interface {
	Target
	Lookup(ctx context.Context, crossRefID int) (domain.LookupRecord, bool)
}

// Notifier publishes finished run outcomes to an outbound channel.
type Notifier interface {
	PublishOutcome(ctx context.Context, outcome domain.RunOutcome) error
}

// ScheduledJob is a job key bound to a daily time of day.
type ScheduledJob struct {
	Key  string
	Time string
}

// ScheduledEntry reports the next trigger of a registered job.
type ScheduledEntry struct {
	Key  string    `json:"key"`
	Time string    `json:"time"`
	Next time.Time `json:"next"`
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Start(ctx context.Context, jobs []ScheduledJob, run func(ctx context.Context, key string)) error
	Stop(ctx context.Context) error
	Running() bool
	Entries() []ScheduledEntry
}
