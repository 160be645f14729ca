// Package loader parses tabular social-trend and environmental-indicator
// inputs into validated record sets. Column layouts vary between dataset
// exports, so every field is located through a declared schema instead of
// hard-coded positions; rows failing validation are quarantined as
// diagnostics rather than aborting the load.
package loader

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// FieldSpec declares which source column feeds a record field. The primary
// column name is tried first, then each alternative, case-insensitively.
type FieldSpec struct {
	Column       string   `yaml:"column"`
	Alternatives []string `yaml:"alternatives"`
}

// lookup finds the field's column index in a header index, or -1.
func (f FieldSpec) lookup(header map[string]int) int {
	if idx, ok := header[foldHeader(f.Column)]; ok {
		return idx
	}
	for _, alt := range f.Alternatives {
		if idx, ok := header[foldHeader(alt)]; ok {
			return idx
		}
	}
	return -1
}

// SocialSchema maps social-trend columns onto SocialRecord fields.
// post_id, timestamp, region, and engagement are always required; sentiment
// is required unless an external scorer and a text column stand in for it.
type SocialSchema struct {
	PostID     FieldSpec `yaml:"post_id"`
	Timestamp  FieldSpec `yaml:"timestamp"`
	Region     FieldSpec `yaml:"region"`
	Hashtags   FieldSpec `yaml:"hashtags"`
	Sentiment  FieldSpec `yaml:"sentiment"`
	Engagement FieldSpec `yaml:"engagement"`
	Text       FieldSpec `yaml:"text"`
}

// EnvSchema maps environmental-indicator columns onto EnvIndicatorRecord
// fields. region, period, indicator, and value are required.
type EnvSchema struct {
	Region    FieldSpec `yaml:"region"`
	Period    FieldSpec `yaml:"period"`
	Indicator FieldSpec `yaml:"indicator"`
	Value     FieldSpec `yaml:"value"`
	Unit      FieldSpec `yaml:"unit"`
}

// Schema bundles both dataset mappings.
type Schema struct {
	Social SocialSchema `yaml:"social"`
	Env    EnvSchema    `yaml:"env"`
}

// DefaultSchema covers the column spellings seen across common exports of
// this data, so most files load without a mapping file.
func DefaultSchema() Schema {
	return Schema{
		Social: SocialSchema{
			PostID:     FieldSpec{Column: "post_id", Alternatives: []string{"id", "tweet_id"}},
			Timestamp:  FieldSpec{Column: "timestamp", Alternatives: []string{"date", "created_at", "time"}},
			Region:     FieldSpec{Column: "region", Alternatives: []string{"location", "place", "user_location", "country"}},
			Hashtags:   FieldSpec{Column: "hashtags", Alternatives: []string{"hashtag", "tags"}},
			Sentiment:  FieldSpec{Column: "sentiment", Alternatives: []string{"sentiment_score", "tone"}},
			Engagement: FieldSpec{Column: "engagement", Alternatives: []string{"engagement_count", "likes", "interactions"}},
			Text:       FieldSpec{Column: "text", Alternatives: []string{"content", "post_text"}},
		},
		Env: EnvSchema{
			Region:    FieldSpec{Column: "region", Alternatives: []string{"location", "area"}},
			Period:    FieldSpec{Column: "period", Alternatives: []string{"date", "time_period", "week", "month"}},
			Indicator: FieldSpec{Column: "indicator", Alternatives: []string{"indicator_name", "metric"}},
			Value:     FieldSpec{Column: "value", Alternatives: []string{"reading", "measurement"}},
			Unit:      FieldSpec{Column: "unit", Alternatives: []string{"units"}},
		},
	}
}

// LoadSchema reads a schema-mapping YAML file layered over the defaults, or
// returns the defaults when path is empty. Fields absent from the file keep
// their default mapping.
func LoadSchema(path string) (Schema, error) {
	schema := DefaultSchema()
	if path == "" {
		return schema, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema file: %w", err)
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return Schema{}, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	return schema, nil
}

// headerIndex folds a CSV header row into a name -> column index map.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[foldHeader(name)] = i
	}
	return idx
}

func foldHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
}
