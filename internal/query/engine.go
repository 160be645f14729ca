package query

import (
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/climate-trends-analytics/internal/correlate"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
)

// ErrNotReady is returned before the first snapshot swap.
var ErrNotReady = errors.New("no snapshot available yet")

// DefaultThemeLimit bounds TopThemes when the caller passes no limit.
const DefaultThemeLimit = 10

// Result is the outcome of a metrics query: the filtered joined rows, one
// correlation stat per indicator among them, and the coverage gaps in scope.
type Result struct {
	SnapshotID   string                `json:"snapshot_id"`
	BuiltAt      time.Time             `json:"built_at"`
	Metrics      []domain.JoinedMetric `json:"metrics"`
	Correlations []correlate.Stat      `json:"correlations"`
	Gaps         []domain.CoverageGap  `json:"gaps,omitempty"`
	ScoreFormula string                `json:"score_formula"`
}

// Summary is the KPI block over the posts matching a filter.
type Summary struct {
	SnapshotID      string    `json:"snapshot_id"`
	BuiltAt         time.Time `json:"built_at"`
	Posts           int       `json:"posts"`
	TotalEngagement int64     `json:"total_engagement"`
	MeanSentiment   float64   `json:"mean_sentiment"`
	TopTheme        string    `json:"top_theme,omitempty"`
	Regions         int       `json:"regions"`
	FirstBucket     string    `json:"first_bucket,omitempty"`
	LastBucket      string    `json:"last_bucket,omitempty"`
	JoinedRows      int       `json:"joined_rows"`
	CoverageGaps    int       `json:"coverage_gaps"`
	ScoreFormula    string    `json:"score_formula"`
}

// ThemeCount ranks one theme by post volume.
type ThemeCount struct {
	Theme           string  `json:"theme"`
	Posts           int     `json:"posts"`
	TotalEngagement int64   `json:"total_engagement"`
	MeanSentiment   float64 `json:"mean_sentiment"`
}

// TimePoint is per-bucket post activity.
type TimePoint struct {
	TimeBucket      string    `json:"time_bucket"`
	BucketStart     time.Time `json:"bucket_start"`
	Posts           int       `json:"posts"`
	TotalEngagement int64     `json:"total_engagement"`
	MeanSentiment   float64   `json:"mean_sentiment"`
}

// RegionActivity is per-region post activity with the region's centroid for
// map rendering.
type RegionActivity struct {
	RegionCode      string  `json:"region_code"`
	Name            string  `json:"name,omitempty"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	Posts           int     `json:"posts"`
	TotalEngagement int64   `json:"total_engagement"`
	MeanSentiment   float64 `json:"mean_sentiment"`
}

// DiagnosticsReport wraps the snapshot's data-quality diagnostics.
type DiagnosticsReport struct {
	SnapshotID  string             `json:"snapshot_id"`
	BuiltAt     time.Time          `json:"built_at"`
	Granularity domain.Granularity `json:"granularity"`
	Diagnostics domain.Diagnostics `json:"diagnostics"`
}

// Engine serves read operations against the current snapshot. The snapshot
// is held in an atomic pointer: Swap installs a complete replacement, readers
// never observe partial state. Results are cached per snapshot and filter.
type Engine struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	minSamples int
	cache      *gocache.Cache
	snapshot   atomic.Pointer[domain.Snapshot]
}

// New creates an Engine. cacheTTL at or below zero disables result caching.
func New(minSamples int, cacheTTL time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	e := &Engine{
		logger:     logger,
		metrics:    metrics,
		minSamples: minSamples,
	}
	if cacheTTL > 0 {
		e.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return e
}

// Swap atomically installs a new snapshot and flushes the result cache.
func (e *Engine) Swap(snap *domain.Snapshot) {
	e.snapshot.Store(snap)
	if e.cache != nil {
		e.cache.Flush()
	}
	e.logger.Info("snapshot swapped",
		"snapshot_id", snap.ID,
		"joined_metrics", len(snap.Metrics),
		"coverage_gaps", len(snap.Gaps),
		"social_records", len(snap.Social),
		"env_records", len(snap.Env),
	)
}

// Current returns the installed snapshot, or ErrNotReady before the first swap.
func (e *Engine) Current() (*domain.Snapshot, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// CheckReadiness reports whether a snapshot has been installed.
func (e *Engine) CheckReadiness() error {
	_, err := e.Current()
	return err
}

// Query returns the joined metrics matching the filter with per-indicator
// correlation stats and in-scope coverage gaps. An empty match is not an
// error: the result carries an explicit insufficient-data correlation.
func (e *Engine) Query(f Filter) (*Result, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	start := time.Now()
	defer func() { e.observe("query", start) }()

	key := "query|" + snap.ID + "|" + f.Key()
	if v, ok := e.cached(key); ok {
		return v.(*Result), nil
	}

	metrics := make([]domain.JoinedMetric, 0)
	for _, m := range snap.Metrics {
		if f.matchMetric(m) {
			metrics = append(metrics, m)
		}
	}
	gaps := make([]domain.CoverageGap, 0)
	for _, g := range snap.Gaps {
		if f.matchGap(g) {
			gaps = append(gaps, g)
		}
	}

	stats := correlate.Correlate(metrics, e.minSamples)
	for _, s := range stats {
		if s.Status == correlate.StatusInsufficientData {
			e.metrics.CorrelationsInsufficient.Inc()
		}
	}

	res := &Result{
		SnapshotID:   snap.ID,
		BuiltAt:      snap.BuiltAt,
		Metrics:      metrics,
		Correlations: stats,
		Gaps:         gaps,
		ScoreFormula: snap.Weights.Formula(),
	}
	e.store(key, res)
	return res, nil
}

// Summary computes the KPI block over posts matching the filter.
func (e *Engine) Summary(f Filter) (*Summary, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	start := time.Now()
	defer func() { e.observe("summary", start) }()

	key := "summary|" + snap.ID + "|" + f.Key()
	if v, ok := e.cached(key); ok {
		return v.(*Summary), nil
	}

	sum := &Summary{
		SnapshotID:   snap.ID,
		BuiltAt:      snap.BuiltAt,
		ScoreFormula: snap.Weights.Formula(),
	}

	var sentimentSum float64
	regions := make(map[string]bool)
	themePosts := make(map[string]int)
	var first, last time.Time
	for _, rec := range snap.Social {
		if !f.matchSocial(rec) {
			continue
		}
		sum.Posts++
		sum.TotalEngagement += rec.EngagementCount
		sentimentSum += rec.SentimentScore
		regions[rec.RegionCode] = true
		for _, theme := range rec.Themes() {
			themePosts[theme]++
		}
		if first.IsZero() || rec.BucketStart.Before(first) {
			first = rec.BucketStart
			sum.FirstBucket = rec.TimeBucket
		}
		if last.IsZero() || rec.BucketStart.After(last) {
			last = rec.BucketStart
			sum.LastBucket = rec.TimeBucket
		}
	}
	if sum.Posts > 0 {
		sum.MeanSentiment = sentimentSum / float64(sum.Posts)
	}
	sum.Regions = len(regions)
	sum.TopTheme = topTheme(themePosts)

	for _, m := range snap.Metrics {
		if f.matchMetric(m) {
			sum.JoinedRows++
		}
	}
	for _, g := range snap.Gaps {
		if f.matchGap(g) {
			sum.CoverageGaps++
		}
	}

	e.store(key, sum)
	return sum, nil
}

// TopThemes ranks themes among matching posts by post count.
func (e *Engine) TopThemes(f Filter, limit int) ([]ThemeCount, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	if limit <= 0 {
		limit = DefaultThemeLimit
	}
	start := time.Now()
	defer func() { e.observe("themes", start) }()

	key := "themes|" + snap.ID + "|" + strconv.Itoa(limit) + "|" + f.Key()
	if v, ok := e.cached(key); ok {
		return v.([]ThemeCount), nil
	}

	type agg struct {
		posts        int
		engagement   int64
		sentimentSum float64
	}
	byTheme := make(map[string]*agg)
	for _, rec := range snap.Social {
		if !f.matchSocial(rec) {
			continue
		}
		for _, theme := range rec.Themes() {
			if !f.matchTheme(theme) {
				continue
			}
			a := byTheme[theme]
			if a == nil {
				a = &agg{}
				byTheme[theme] = a
			}
			a.posts++
			a.engagement += rec.EngagementCount
			a.sentimentSum += rec.SentimentScore
		}
	}

	out := make([]ThemeCount, 0, len(byTheme))
	for theme, a := range byTheme {
		out = append(out, ThemeCount{
			Theme:           theme,
			Posts:           a.posts,
			TotalEngagement: a.engagement,
			MeanSentiment:   a.sentimentSum / float64(a.posts),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Posts != out[j].Posts {
			return out[i].Posts > out[j].Posts
		}
		return out[i].Theme < out[j].Theme
	})
	if len(out) > limit {
		out = out[:limit]
	}

	e.store(key, out)
	return out, nil
}

// TimeSeries returns per-bucket post activity for matching posts, ordered by
// bucket start.
func (e *Engine) TimeSeries(f Filter) ([]TimePoint, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	start := time.Now()
	defer func() { e.observe("timeseries", start) }()

	key := "timeseries|" + snap.ID + "|" + f.Key()
	if v, ok := e.cached(key); ok {
		return v.([]TimePoint), nil
	}

	byBucket := make(map[string]*TimePoint)
	sentiments := make(map[string]float64)
	for _, rec := range snap.Social {
		if !f.matchSocial(rec) {
			continue
		}
		p := byBucket[rec.TimeBucket]
		if p == nil {
			p = &TimePoint{TimeBucket: rec.TimeBucket, BucketStart: rec.BucketStart}
			byBucket[rec.TimeBucket] = p
		}
		p.Posts++
		p.TotalEngagement += rec.EngagementCount
		sentiments[rec.TimeBucket] += rec.SentimentScore
	}

	out := make([]TimePoint, 0, len(byBucket))
	for bucket, p := range byBucket {
		p.MeanSentiment = sentiments[bucket] / float64(p.Posts)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStart.Before(out[j].BucketStart)
	})

	e.store(key, out)
	return out, nil
}

// RegionActivity returns per-region post activity with centroids, ordered by
// engagement.
func (e *Engine) RegionActivity(f Filter) ([]RegionActivity, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	start := time.Now()
	defer func() { e.observe("regions", start) }()

	key := "regions|" + snap.ID + "|" + f.Key()
	if v, ok := e.cached(key); ok {
		return v.([]RegionActivity), nil
	}

	info := make(map[string]domain.Region, len(snap.Regions))
	for _, r := range snap.Regions {
		info[r.Code] = r
	}

	byRegion := make(map[string]*RegionActivity)
	sentiments := make(map[string]float64)
	for _, rec := range snap.Social {
		if !f.matchSocial(rec) {
			continue
		}
		a := byRegion[rec.RegionCode]
		if a == nil {
			r := info[rec.RegionCode]
			a = &RegionActivity{RegionCode: rec.RegionCode, Name: r.Name, Lat: r.Lat, Lon: r.Lon}
			byRegion[rec.RegionCode] = a
		}
		a.Posts++
		a.TotalEngagement += rec.EngagementCount
		sentiments[rec.RegionCode] += rec.SentimentScore
	}

	out := make([]RegionActivity, 0, len(byRegion))
	for code, a := range byRegion {
		a.MeanSentiment = sentiments[code] / float64(a.Posts)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalEngagement != out[j].TotalEngagement {
			return out[i].TotalEngagement > out[j].TotalEngagement
		}
		return out[i].RegionCode < out[j].RegionCode
	})

	e.store(key, out)
	return out, nil
}

// Gaps returns the coverage gaps in filter scope.
func (e *Engine) Gaps(f Filter) ([]domain.CoverageGap, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	start := time.Now()
	defer func() { e.observe("gaps", start) }()

	out := make([]domain.CoverageGap, 0)
	for _, g := range snap.Gaps {
		if f.matchGap(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Diagnostics returns the current snapshot's data-quality report.
func (e *Engine) Diagnostics() (*DiagnosticsReport, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	e.metrics.Queries.WithLabelValues("diagnostics").Inc()
	return &DiagnosticsReport{
		SnapshotID:  snap.ID,
		BuiltAt:     snap.BuiltAt,
		Granularity: snap.Granularity,
		Diagnostics: snap.Diagnostics,
	}, nil
}

func (e *Engine) observe(op string, start time.Time) {
	e.metrics.Queries.WithLabelValues(op).Inc()
	e.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) cached(key string) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(key)
	if ok {
		e.metrics.QueryCache.WithLabelValues("hit").Inc()
	} else {
		e.metrics.QueryCache.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (e *Engine) store(key string, v any) {
	if e.cache != nil {
		e.cache.SetDefault(key, v)
	}
}

// topTheme picks the busiest theme, breaking ties alphabetically.
func topTheme(counts map[string]int) string {
	best := ""
	bestCount := 0
	for theme, n := range counts {
		if n > bestCount || (n == bestCount && (best == "" || theme < best)) {
			best = theme
			bestCount = n
		}
	}
	return best
}
