package scorer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDisabled(t *testing.T) {
	s, err := New(config.ScorerConfig{}, testLogger())

	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNewStatic(t *testing.T) {
	s, err := New(config.ScorerConfig{Provider: "static"}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "static", s.Name())
}

func TestNewOpenAI(t *testing.T) {
	cfg := config.ScorerConfig{
		Provider: "openai",
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
		Timeout:  5 * time.Second,
	}

	s, err := New(cfg, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())
}

func TestNewOpenAIWithoutKey(t *testing.T) {
	_, err := New(config.ScorerConfig{Provider: "openai"}, testLogger())

	assert.ErrorContains(t, err, "API key")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.ScorerConfig{Provider: "oracle"}, testLogger())

	assert.ErrorContains(t, err, "unknown scorer provider: oracle")
}

func TestNewProviderCaseInsensitive(t *testing.T) {
	s, err := New(config.ScorerConfig{Provider: "Static"}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "static", s.Name())
}

func TestStaticScore(t *testing.T) {
	s := &Static{Value: 0.25}

	scores, err := s.Score(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25}, scores)
}

func TestStaticScoreClampsValue(t *testing.T) {
	s := &Static{Value: 2.5}

	scores, err := s.Score(context.Background(), []string{"a"})

	require.NoError(t, err)
	assert.Equal(t, []float64{1}, scores)
}

func TestStaticScoreEmpty(t *testing.T) {
	s := &Static{}

	scores, err := s.Score(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, scores)
}
