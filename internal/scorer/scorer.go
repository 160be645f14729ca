// Package scorer fills in sentiment for datasets that ship post text but no
// sentiment column. Scoring is optional: with no provider configured the
// loader requires the column instead.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Scorer assigns one sentiment score in [-1,1] per text.
type Scorer interface {
	Name() string
	Score(ctx context.Context, texts []string) ([]float64, error)
}

// New builds the configured scorer. An empty provider returns nil, nil:
// scoring disabled.
func New(cfg config.ScorerConfig, logger *slog.Logger) (Scorer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAI(cfg, logger)
	case "static":
		return &Static{}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scorer provider: %s (supported: openai, static)", cfg.Provider)
	}
}

// Static scores every text with the same fixed value. Useful for datasets
// with no sentiment column when no API is available: correlation then runs
// on engagement alone.
type Static struct {
	Value float64
}

// Name returns the provider name.
func (s *Static) Name() string { return "static" }

// Score returns the fixed value for each text.
func (s *Static) Score(_ context.Context, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i := range scores {
		scores[i] = domain.ClampSentiment(s.Value)
	}
	return scores, nil
}
