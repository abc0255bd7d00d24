package scanner

import (
	"context"
	"errors"
	"fmt"

	"MediaTrend/internal/domain"
)

// ErrUnsupportedCountry is returned before any network call for codes missing from a scanner's table.
var ErrUnsupportedCountry = errors.New("unsupported country code")

// Scanner captures a single source-adapter family (Tudum, FlixPatrol, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req domain.ScrapeRequest) ([]string, error)
}

// Registry keeps a mapping from scanner family names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
