package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, "./data", cfg.Data.Dir)
	assert.Equal(t, "social_*.csv", cfg.Data.SocialGlob)
	assert.Equal(t, "env_*.csv", cfg.Data.EnvGlob)
	assert.Empty(t, cfg.Schema.File)
	assert.Equal(t, domain.GranularityWeek, cfg.Normalize.Granularity)
	assert.False(t, cfg.Normalize.IncludeUnknown)
	assert.Equal(t, 1.0, cfg.Score.EngagementWeight)
	assert.Equal(t, 1.0, cfg.Score.SentimentWeight)
	assert.Equal(t, 3, cfg.Correlation.MinSampleSize)
	assert.Equal(t, 0.5, cfg.Load.MinSuccessFraction)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Refresh.Watch)
	assert.Equal(t, 2*time.Second, cfg.Refresh.Debounce)
	assert.Zero(t, cfg.Refresh.Interval)
	assert.Equal(t, 5*time.Second, cfg.Refresh.RateLimit)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "climate-social-posts", cfg.Kafka.Topic)
	assert.Equal(t, "climate-trends-analytics", cfg.Kafka.GroupID)
	assert.Equal(t, 100, cfg.Kafka.BatchSize)
	assert.False(t, cfg.Archive.Enabled)
	assert.Empty(t, cfg.Scorer.Provider)
	assert.Equal(t, 30*time.Second, cfg.Scorer.Timeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_LOG_LEVEL", "debug")
	t.Setenv("CLIMATE_TRENDS_LOG_FORMAT", "text")
	t.Setenv("CLIMATE_TRENDS_HTTP_ADDR", ":9090")
	t.Setenv("CLIMATE_TRENDS_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CLIMATE_TRENDS_DATA_DIR", "/srv/datasets")
	t.Setenv("CLIMATE_TRENDS_NORMALIZE_GRANULARITY", "month")
	t.Setenv("CLIMATE_TRENDS_NORMALIZE_INCLUDE_UNKNOWN", "true")
	t.Setenv("CLIMATE_TRENDS_SCORE_ENGAGEMENT_WEIGHT", "0.5")
	t.Setenv("CLIMATE_TRENDS_CORRELATION_MIN_SAMPLE_SIZE", "5")
	t.Setenv("CLIMATE_TRENDS_CACHE_TTL", "90s")
	t.Setenv("CLIMATE_TRENDS_KAFKA_ENABLED", "true")
	t.Setenv("CLIMATE_TRENDS_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("CLIMATE_TRENDS_KAFKA_TOPIC", "posts-in")
	t.Setenv("CLIMATE_TRENDS_SCORER_PROVIDER", "static")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, "/srv/datasets", cfg.Data.Dir)
	assert.Equal(t, domain.GranularityMonth, cfg.Normalize.Granularity)
	assert.True(t, cfg.Normalize.IncludeUnknown)
	assert.Equal(t, 0.5, cfg.Score.EngagementWeight)
	assert.Equal(t, 5, cfg.Correlation.MinSampleSize)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "posts-in", cfg.Kafka.Topic)
	assert.Equal(t, "static", cfg.Scorer.Provider)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
normalize:
  granularity: day
refresh:
  watch: false
archive:
  enabled: true
  path: /tmp/archive.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, domain.GranularityDay, cfg.Normalize.Granularity)
	assert.False(t, cfg.Refresh.Watch)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "/tmp/archive.db", cfg.Archive.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("CLIMATE_TRENDS_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_LOG_LEVEL", "chatty")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_InvalidGranularity(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_NORMALIZE_GRANULARITY", "fortnight")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize.granularity")
}

func TestLoad_InvalidMinSampleSize(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_CORRELATION_MIN_SAMPLE_SIZE", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation.min_sample_size")
}

func TestLoad_InvalidSuccessFraction(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_LOAD_MIN_SUCCESS_FRACTION", "1.5")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load.min_success_fraction")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  enabled: true\n  brokers: []\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestLoad_OpenAIScorerWithoutKey(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_SCORER_PROVIDER", "openai")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer.api_key")
}

func TestLoad_UnknownScorerProvider(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_SCORER_PROVIDER", "oracle")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer.provider")
}

func TestLoad_NegativeDebounceWithWatch(t *testing.T) {
	t.Setenv("CLIMATE_TRENDS_REFRESH_DEBOUNCE", "0s")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh.debounce")
}

func TestWeights(t *testing.T) {
	cfg := &Config{Score: ScoreConfig{EngagementWeight: 2, SentimentWeight: 0.25}}
	assert.Equal(t, domain.ScoreWeights{Engagement: 2, Sentiment: 0.25}, cfg.Weights())
}
