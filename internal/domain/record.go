package domain

import "time"

// RegionUnknown is the sentinel region code assigned when a raw_region string
// matches nothing in the alias table. Unknown-region records stay in the
// dataset but are excluded from region-filtered aggregates by default.
const RegionUnknown = "unknown"

// Gap sides: which dataset is missing at a join key.
const (
	GapMissingSocial        = "social"
	GapMissingEnvironmental = "environmental"
)

// RawSocialRow is the untyped social-post row shape shared by the CSV loader
// and the Kafka ingest path. All values are strings exactly as they appear in
// the source; validation and type coercion happen in the loader.
type RawSocialRow struct {
	PostID     string `json:"post_id"`
	Timestamp  string `json:"timestamp"`
	Region     string `json:"region"`
	Hashtags   string `json:"hashtags"`
	Sentiment  string `json:"sentiment"`
	Engagement string `json:"engagement"`
	Text       string `json:"text,omitempty"`
}

// RawEnvRow is the untyped environmental-indicator row shape.
type RawEnvRow struct {
	Region    string `json:"region"`
	Period    string `json:"period"`
	Indicator string `json:"indicator"`
	Value     string `json:"value"`
	Unit      string `json:"unit"`
}

// SocialRecord is one validated social-media post. RegionCode, TimeBucket and
// BucketStart are empty until normalization assigns them.
type SocialRecord struct {
	PostID          string    `json:"post_id"`
	Timestamp       time.Time `json:"timestamp"`
	RawRegion       string    `json:"raw_region"`
	RegionCode      string    `json:"region_code,omitempty"`
	TimeBucket      string    `json:"time_bucket,omitempty"`
	BucketStart     time.Time `json:"bucket_start"`
	Hashtags        []string  `json:"hashtags"` // canonical themes, sorted, deduplicated
	SentimentScore  float64   `json:"sentiment_score"`
	EngagementCount int64     `json:"engagement_count"`
	Text            string    `json:"text,omitempty"`
}

// Themes lists the theme groups this post contributes to: its hashtags, or
// the untagged theme when it has none.
func (r SocialRecord) Themes() []string {
	if len(r.Hashtags) == 0 {
		return []string{ThemeUntagged}
	}
	return r.Hashtags
}

// EnvIndicatorRecord is one validated environmental-indicator observation.
// (RegionCode, TimeBucket, IndicatorName) is unique within a load; duplicates
// beyond the first are quarantined.
type EnvIndicatorRecord struct {
	RawRegion     string    `json:"raw_region,omitempty"`
	RegionCode    string    `json:"region_code"`
	TimeBucket    string    `json:"time_bucket"`
	BucketStart   time.Time `json:"bucket_start"`
	IndicatorName string    `json:"indicator_name"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit,omitempty"`
}

// JoinedMetric is one row of the joined dataset: a social aggregate group and
// the environmental value sharing its (region_code, time_bucket) key, split
// per indicator. Derived and recomputable; never a source of truth.
type JoinedMetric struct {
	RegionCode      string    `json:"region_code"`
	TimeBucket      string    `json:"time_bucket"`
	BucketStart     time.Time `json:"bucket_start"`
	Theme           string    `json:"theme"`
	Indicator       string    `json:"indicator"`
	ActivismScore   float64   `json:"activism_score"`
	EnvValue        float64   `json:"env_value"`
	Unit            string    `json:"unit,omitempty"`
	SampleSize      int       `json:"sample_size"`
	TotalEngagement int64     `json:"total_engagement"`
	MeanSentiment   float64   `json:"mean_sentiment"`
}

// CoverageGap is a (region_code, time_bucket) key present in only one dataset.
type CoverageGap struct {
	RegionCode   string    `json:"region_code"`
	TimeBucket   string    `json:"time_bucket"`
	BucketStart  time.Time `json:"bucket_start"`
	Missing      string    `json:"missing"` // GapMissingSocial or GapMissingEnvironmental
	PresentCount int       `json:"present_count"`
}

// Region is one entry of the versioned alias table: a canonical code, its
// display name, a centroid for map rendering, and the raw spellings that
// resolve to it.
type Region struct {
	Code    string   `json:"code" yaml:"code"`
	Name    string   `json:"name" yaml:"name"`
	Lat     float64  `json:"lat" yaml:"lat"`
	Lon     float64  `json:"lon" yaml:"lon"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// AmbiguityWarning records a raw_region string that matched aliases of more
// than one region. The alphabetically-first code is chosen deterministically.
type AmbiguityWarning struct {
	RawRegion  string   `json:"raw_region"`
	Candidates []string `json:"candidates"` // sorted canonical codes
	Chosen     string   `json:"chosen"`
}

// DatasetDiagnostics summarizes validation for one input dataset.
type DatasetDiagnostics struct {
	RowsSeen    int                  `json:"rows_seen"`
	RowsLoaded  int                  `json:"rows_loaded"`
	Quarantined []RowValidationError `json:"quarantined,omitempty"`
}

// Diagnostics is the data-quality report attached to every snapshot, returned
// alongside query results so the presentation layer can show caveats.
type Diagnostics struct {
	Social         DatasetDiagnostics `json:"social"`
	Env            DatasetDiagnostics `json:"env"`
	Ambiguities    []AmbiguityWarning `json:"ambiguities,omitempty"`
	UnknownRegions int                `json:"unknown_regions"`
	Sources        []string           `json:"sources,omitempty"`
}

// Snapshot is one immutable load-and-join result. The query engine serves a
// snapshot until the next successful build swaps in a replacement; nothing
// mutates a snapshot after construction.
type Snapshot struct {
	ID          string               `json:"id"`
	BuiltAt     time.Time            `json:"built_at"`
	Granularity Granularity          `json:"granularity"`
	Weights     ScoreWeights         `json:"weights"`
	Social      []SocialRecord       `json:"-"`
	Env         []EnvIndicatorRecord `json:"-"`
	Metrics     []JoinedMetric       `json:"metrics"`
	Gaps        []CoverageGap        `json:"gaps,omitempty"`
	Regions     []Region             `json:"-"`
	Diagnostics Diagnostics          `json:"diagnostics"`
}
