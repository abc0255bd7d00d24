package parser

import (
	"context"
	"fmt"
	"log/slog"

	"MediaTrend/internal/domain"
	"MediaTrend/internal/ports"
	"MediaTrend/internal/scanner"
)

// StrategySource implements TitleSource by dispatching to the platform's scanner family.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.TitleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// FetchTopTitles resolves the platform's scanner and runs it for one country.
func (s *StrategySource) FetchTopTitles(ctx context.Context, req domain.ScrapeRequest) ([]string, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(req.Platform.Scanner)
	if err != nil {
		return nil, fmt.Errorf("platform %s: %w", req.Platform.ID, err)
	}

	s.debug("scan platform", "platform", req.Platform.ID, "scanner", strategy.Name(), "country", req.CountryCode, "kind", req.Kind)
	titles, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan %s/%s: %w", req.Platform.ID, req.CountryCode, err)
	}

	s.debug("platform produced titles", "platform", req.Platform.ID, "country", req.CountryCode, "count", len(titles))
	return titles, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
