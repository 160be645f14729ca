package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Config holds all service settings, populated from defaults, an optional
// YAML config file, and CLIMATE_TRENDS_* environment variables (dots in key
// names become underscores, e.g. CLIMATE_TRENDS_HTTP_ADDR).
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
	Data        DataConfig        `mapstructure:"data"`
	Schema      SchemaConfig      `mapstructure:"schema"`
	Normalize   NormalizeConfig   `mapstructure:"normalize"`
	Score       ScoreConfig       `mapstructure:"score"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Load        LoadConfig        `mapstructure:"load"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Scorer      ScorerConfig      `mapstructure:"scorer"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DataConfig locates the input datasets.
type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	SocialGlob string `mapstructure:"social_glob"`
	EnvGlob    string `mapstructure:"env_glob"`
}

// SchemaConfig points at an optional column-mapping override file.
type SchemaConfig struct {
	File string `mapstructure:"file"`
}

// NormalizeConfig controls region resolution and time bucketing.
type NormalizeConfig struct {
	Granularity    domain.Granularity `mapstructure:"granularity"`
	AliasFile      string             `mapstructure:"alias_file"`
	IncludeUnknown bool               `mapstructure:"include_unknown"`
}

// ScoreConfig sets the activism-score weighting.
type ScoreConfig struct {
	EngagementWeight float64 `mapstructure:"engagement_weight"`
	SentimentWeight  float64 `mapstructure:"sentiment_weight"`
}

// CorrelationConfig bounds correlation reporting.
type CorrelationConfig struct {
	MinSampleSize int `mapstructure:"min_sample_size"`
}

// LoadConfig bounds dataset quality.
type LoadConfig struct {
	MinSuccessFraction float64 `mapstructure:"min_success_fraction"`
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RefreshConfig controls the rebuild loop.
type RefreshConfig struct {
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
	// Interval adds periodic rebuilds on top of watch triggers; zero disables.
	Interval time.Duration `mapstructure:"interval"`
	// RateLimit is the minimum spacing between rebuilds from any trigger.
	RateLimit time.Duration `mapstructure:"rate_limit"`
}

// KafkaConfig enables streaming ingest and metric publishing.
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	GroupID      string   `mapstructure:"group_id"`
	MetricsTopic string   `mapstructure:"metrics_topic"` // empty disables publishing
	BatchSize    int      `mapstructure:"batch_size"`
}

// ArchiveConfig enables the SQLite snapshot archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ScorerConfig selects the external sentiment scorer.
type ScorerConfig struct {
	Provider string        `mapstructure:"provider"` // openai, static, or empty to disable
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load reads configuration, layering an optional config file and environment
// variables over defaults, then validates. An empty path searches for
// .climate-trends.yaml in the working directory and home.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".climate-trends")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("CLIMATE_TRENDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.social_glob", "social_*.csv")
	v.SetDefault("data.env_glob", "env_*.csv")
	v.SetDefault("schema.file", "")
	v.SetDefault("normalize.granularity", "week")
	v.SetDefault("normalize.alias_file", "")
	v.SetDefault("normalize.include_unknown", false)
	v.SetDefault("score.engagement_weight", 1.0)
	v.SetDefault("score.sentiment_weight", 1.0)
	v.SetDefault("correlation.min_sample_size", 3)
	v.SetDefault("load.min_success_fraction", 0.5)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("refresh.watch", true)
	v.SetDefault("refresh.debounce", "2s")
	v.SetDefault("refresh.interval", "0s")
	v.SetDefault("refresh.rate_limit", "5s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "climate-social-posts")
	v.SetDefault("kafka.group_id", "climate-trends-analytics")
	v.SetDefault("kafka.metrics_topic", "")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "./climate-trends.db")
	v.SetDefault("scorer.provider", "")
	v.SetDefault("scorer.model", "gpt-4o-mini")
	v.SetDefault("scorer.api_key", "")
	v.SetDefault("scorer.base_url", "")
	v.SetDefault("scorer.timeout", "30s")
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	if c.Data.Dir == "" {
		return errors.New("data.dir is required")
	}
	if _, err := domain.ParseGranularity(string(c.Normalize.Granularity)); err != nil {
		return fmt.Errorf("normalize.granularity: %w", err)
	}
	if c.Correlation.MinSampleSize < 1 {
		return errors.New("correlation.min_sample_size must be at least 1")
	}
	if c.Load.MinSuccessFraction < 0 || c.Load.MinSuccessFraction > 1 {
		return errors.New("load.min_success_fraction must be within [0,1]")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.Refresh.Watch && c.Refresh.Debounce <= 0 {
		return errors.New("refresh.debounce must be positive when refresh.watch is true")
	}
	if c.Refresh.Interval < 0 {
		return errors.New("refresh.interval must not be negative")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka.enabled is true")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka.enabled is true")
		}
		if c.Kafka.GroupID == "" {
			return errors.New("kafka.group_id is required when kafka.enabled is true")
		}
		if c.Kafka.BatchSize < 1 {
			return errors.New("kafka.batch_size must be at least 1")
		}
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("archive.path is required when archive.enabled is true")
	}
	switch c.Scorer.Provider {
	case "", "static":
	case "openai":
		if c.Scorer.APIKey == "" {
			return errors.New("scorer.api_key is required when scorer.provider is openai")
		}
		if c.Scorer.Timeout <= 0 {
			return errors.New("scorer.timeout must be positive")
		}
	default:
		return fmt.Errorf("scorer.provider %q is not one of openai, static", c.Scorer.Provider)
	}
	return nil
}

// Weights returns the configured activism-score weighting.
func (c *Config) Weights() domain.ScoreWeights {
	return domain.ScoreWeights{
		Engagement: c.Score.EngagementWeight,
		Sentiment:  c.Score.SentimentWeight,
	}
}
