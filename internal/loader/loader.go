package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Options controls load behavior.
type Options struct {
	// MinSuccessFraction is the smallest loaded/seen row ratio tolerated
	// before the whole load fails. Zero disables the check.
	MinSuccessFraction float64

	// Granularity buckets environmental periods at parse time so both
	// datasets share a join grain.
	Granularity domain.Granularity

	// ScorerAvailable permits social files without a sentiment column when a
	// text column is present; scores are filled in downstream.
	ScorerAvailable bool
}

// SocialResult is the outcome of loading one or more social-trend files.
type SocialResult struct {
	Records     []domain.SocialRecord
	Diagnostics domain.DatasetDiagnostics
	Sources     []string

	// NeedsScoring is set when sentiment came from no column and records
	// carry text awaiting an external scorer.
	NeedsScoring bool

	// PendingScore indexes the Records whose sentiment awaits scoring.
	// Records from files that carried a sentiment column are not listed.
	PendingScore []int
}

// EnvResult is the outcome of loading environmental-indicator files.
type EnvResult struct {
	Records     []domain.EnvIndicatorRecord
	Diagnostics domain.DatasetDiagnostics
	Sources     []string
}

// Loader reads CSV datasets through a schema mapping.
type Loader struct {
	schema Schema
	opts   Options
	logger *slog.Logger
}

// New creates a Loader. A nil logger falls back to slog.Default.
func New(schema Schema, opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{schema: schema, opts: opts, logger: logger}
}

// LoadSocial parses social-trend CSV files into validated records. Rows
// failing validation are quarantined into the diagnostics; duplicate post ids
// across all files keep the first occurrence. Returns a fatal error only for
// unreadable files, schema violations, or a surviving-row fraction below the
// configured minimum.
func (l *Loader) LoadSocial(paths []string) (*SocialResult, error) {
	res := &SocialResult{Sources: paths}
	seenIDs := make(map[string]bool)

	for _, path := range paths {
		if err := l.loadSocialFile(path, res, seenIDs); err != nil {
			return nil, err
		}
	}

	if err := checkSuccessFraction("social", res.Diagnostics, l.opts.MinSuccessFraction); err != nil {
		return nil, err
	}

	l.logger.Info("social load complete",
		"files", len(paths),
		"rows_seen", res.Diagnostics.RowsSeen,
		"rows_loaded", res.Diagnostics.RowsLoaded,
		"quarantined", len(res.Diagnostics.Quarantined),
		"needs_scoring", res.NeedsScoring,
	)
	return res, nil
}

func (l *Loader) loadSocialFile(path string, res *SocialResult, seenIDs map[string]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open social file: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read social header %s: %w", source, err)
	}

	cols, schemaErr := bindSocialColumns(header, l.schema.Social, l.opts.ScorerAvailable, source)
	if schemaErr != nil {
		return schemaErr
	}
	if cols.sentiment < 0 {
		res.NeedsScoring = true
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Diagnostics.RowsSeen++
			quarantine(&res.Diagnostics, domain.RowValidationError{
				Source: source, Line: line, Reason: fmt.Sprintf("malformed CSV row: %v", err),
			})
			continue
		}

		res.Diagnostics.RowsSeen++
		raw := domain.RawSocialRow{
			PostID:     cell(row, cols.postID),
			Timestamp:  cell(row, cols.timestamp),
			Region:     cell(row, cols.region),
			Hashtags:   cell(row, cols.hashtags),
			Sentiment:  cell(row, cols.sentiment),
			Engagement: cell(row, cols.engagement),
			Text:       cell(row, cols.text),
		}

		rec, rowErr := ParseSocialRow(raw, source, line, cols.sentiment >= 0)
		if rowErr != nil {
			quarantine(&res.Diagnostics, *rowErr)
			continue
		}
		if seenIDs[rec.PostID] {
			quarantine(&res.Diagnostics, domain.RowValidationError{
				Source: source, Line: line, Field: "post_id",
				Reason: fmt.Sprintf("duplicate post_id %q", rec.PostID),
			})
			continue
		}
		seenIDs[rec.PostID] = true
		res.Records = append(res.Records, rec)
		res.Diagnostics.RowsLoaded++
		if cols.sentiment < 0 {
			res.PendingScore = append(res.PendingScore, len(res.Records)-1)
		}
	}

	return nil
}

// LoadEnv parses environmental-indicator CSV files. Periods are bucketed at
// the configured granularity here; region codes are resolved downstream.
func (l *Loader) LoadEnv(paths []string) (*EnvResult, error) {
	res := &EnvResult{Sources: paths}

	for _, path := range paths {
		if err := l.loadEnvFile(path, res); err != nil {
			return nil, err
		}
	}

	if err := checkSuccessFraction("env", res.Diagnostics, l.opts.MinSuccessFraction); err != nil {
		return nil, err
	}

	l.logger.Info("env load complete",
		"files", len(paths),
		"rows_seen", res.Diagnostics.RowsSeen,
		"rows_loaded", res.Diagnostics.RowsLoaded,
		"quarantined", len(res.Diagnostics.Quarantined),
	)
	return res, nil
}

func (l *Loader) loadEnvFile(path string, res *EnvResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read env header %s: %w", source, err)
	}

	cols, schemaErr := bindEnvColumns(header, l.schema.Env, source)
	if schemaErr != nil {
		return schemaErr
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Diagnostics.RowsSeen++
			quarantine(&res.Diagnostics, domain.RowValidationError{
				Source: source, Line: line, Reason: fmt.Sprintf("malformed CSV row: %v", err),
			})
			continue
		}

		res.Diagnostics.RowsSeen++
		raw := domain.RawEnvRow{
			Region:    cell(row, cols.region),
			Period:    cell(row, cols.period),
			Indicator: cell(row, cols.indicator),
			Value:     cell(row, cols.value),
			Unit:      cell(row, cols.unit),
		}

		rec, rowErr := ParseEnvRow(raw, source, line, l.opts.Granularity)
		if rowErr != nil {
			quarantine(&res.Diagnostics, *rowErr)
			continue
		}
		res.Records = append(res.Records, rec)
		res.Diagnostics.RowsLoaded++
	}

	return nil
}

// ParseSocialRow validates and coerces one untyped social row. hasSentiment
// says whether a sentiment column exists in the source; without one the score
// stays zero for downstream scoring. Region stays raw here; normalization
// assigns the canonical code.
func ParseSocialRow(raw domain.RawSocialRow, source string, line int, hasSentiment bool) (domain.SocialRecord, *domain.RowValidationError) {
	fail := func(field, reason string) (domain.SocialRecord, *domain.RowValidationError) {
		return domain.SocialRecord{}, &domain.RowValidationError{Source: source, Line: line, Field: field, Reason: reason}
	}

	postID := strings.TrimSpace(raw.PostID)
	if postID == "" {
		return fail("post_id", "missing required field")
	}

	ts, err := domain.ParseTimestamp(raw.Timestamp)
	if err != nil {
		return fail("timestamp", err.Error())
	}

	sentiment := 0.0
	if hasSentiment {
		s := strings.TrimSpace(raw.Sentiment)
		if s == "" {
			return fail("sentiment", "missing required field")
		}
		sentiment, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return fail("sentiment", fmt.Sprintf("not a number: %q", s))
		}
		if sentiment < -1 || sentiment > 1 {
			return fail("sentiment", fmt.Sprintf("out of range [-1,1]: %g", sentiment))
		}
	}

	engagement, parseErr := parseEngagement(raw.Engagement)
	if parseErr != "" {
		return fail("engagement", parseErr)
	}

	return domain.SocialRecord{
		PostID:          postID,
		Timestamp:       ts,
		RawRegion:       strings.TrimSpace(raw.Region),
		Hashtags:        domain.ParseHashtags(raw.Hashtags),
		SentimentScore:  sentiment,
		EngagementCount: engagement,
		Text:            strings.TrimSpace(raw.Text),
	}, nil
}

// ParseEnvRow validates and coerces one untyped environmental row, bucketing
// its period at the given granularity.
func ParseEnvRow(raw domain.RawEnvRow, source string, line int, g domain.Granularity) (domain.EnvIndicatorRecord, *domain.RowValidationError) {
	fail := func(field, reason string) (domain.EnvIndicatorRecord, *domain.RowValidationError) {
		return domain.EnvIndicatorRecord{}, &domain.RowValidationError{Source: source, Line: line, Field: field, Reason: reason}
	}

	region := strings.TrimSpace(raw.Region)
	if region == "" {
		return fail("region", "missing required field")
	}

	indicator := strings.ToLower(strings.TrimSpace(raw.Indicator))
	if indicator == "" {
		return fail("indicator", "missing required field")
	}

	bucket, err := domain.ParsePeriod(raw.Period, g)
	if err != nil {
		return fail("period", err.Error())
	}

	valueStr := strings.TrimSpace(raw.Value)
	if valueStr == "" {
		return fail("value", "missing required field")
	}
	value, parseErr := strconv.ParseFloat(valueStr, 64)
	if parseErr != nil {
		return fail("value", fmt.Sprintf("not a number: %q", valueStr))
	}

	return domain.EnvIndicatorRecord{
		RawRegion:     region,
		TimeBucket:    bucket.Key,
		BucketStart:   bucket.Start,
		IndicatorName: indicator,
		Value:         value,
		Unit:          strings.TrimSpace(raw.Unit),
	}, nil
}

// parseEngagement accepts integer counts, tolerating float-formatted integers
// ("120.0") that spreadsheet exports produce. Returns a reason string on failure.
func parseEngagement(s string) (int64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "missing required field"
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Sprintf("negative count: %d", n)
		}
		return n, ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Sprintf("not an integer count: %q", s)
	}
	if f < 0 {
		return 0, fmt.Sprintf("negative count: %g", f)
	}
	return int64(f), ""
}

// socialColumns holds resolved column indexes; -1 means absent.
type socialColumns struct {
	postID, timestamp, region, hashtags, sentiment, engagement, text int
}

func bindSocialColumns(header []string, schema SocialSchema, scorerAvailable bool, source string) (socialColumns, *domain.SchemaError) {
	idx := headerIndex(header)
	cols := socialColumns{
		postID:     schema.PostID.lookup(idx),
		timestamp:  schema.Timestamp.lookup(idx),
		region:     schema.Region.lookup(idx),
		hashtags:   schema.Hashtags.lookup(idx),
		sentiment:  schema.Sentiment.lookup(idx),
		engagement: schema.Engagement.lookup(idx),
		text:       schema.Text.lookup(idx),
	}

	var missing []string
	if cols.postID < 0 {
		missing = append(missing, "post_id")
	}
	if cols.timestamp < 0 {
		missing = append(missing, "timestamp")
	}
	if cols.region < 0 {
		missing = append(missing, "region")
	}
	if cols.engagement < 0 {
		missing = append(missing, "engagement")
	}
	if cols.sentiment < 0 && !(scorerAvailable && cols.text >= 0) {
		missing = append(missing, "sentiment")
	}

	if len(missing) > 0 {
		return socialColumns{}, &domain.SchemaError{Dataset: "social", Source: source, Missing: missing}
	}
	return cols, nil
}

// envColumns holds resolved column indexes; -1 means absent.
type envColumns struct {
	region, period, indicator, value, unit int
}

func bindEnvColumns(header []string, schema EnvSchema, source string) (envColumns, *domain.SchemaError) {
	idx := headerIndex(header)
	cols := envColumns{
		region:    schema.Region.lookup(idx),
		period:    schema.Period.lookup(idx),
		indicator: schema.Indicator.lookup(idx),
		value:     schema.Value.lookup(idx),
		unit:      schema.Unit.lookup(idx),
	}

	var missing []string
	if cols.region < 0 {
		missing = append(missing, "region")
	}
	if cols.period < 0 {
		missing = append(missing, "period")
	}
	if cols.indicator < 0 {
		missing = append(missing, "indicator")
	}
	if cols.value < 0 {
		missing = append(missing, "value")
	}

	if len(missing) > 0 {
		return envColumns{}, &domain.SchemaError{Dataset: "env", Source: source, Missing: missing}
	}
	return cols, nil
}

// cell fetches a column value, tolerating short rows and absent columns.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func quarantine(d *domain.DatasetDiagnostics, issue domain.RowValidationError) {
	d.Quarantined = append(d.Quarantined, issue)
}

func checkSuccessFraction(dataset string, diag domain.DatasetDiagnostics, minFraction float64) error {
	if minFraction <= 0 || diag.RowsSeen == 0 {
		return nil
	}
	fraction := float64(diag.RowsLoaded) / float64(diag.RowsSeen)
	if fraction < minFraction {
		return &domain.LoadError{
			Dataset:     dataset,
			RowsSeen:    diag.RowsSeen,
			RowsLoaded:  diag.RowsLoaded,
			MinFraction: minFraction,
		}
	}
	return nil
}

// Discover globs the data directory for social and environmental files.
// A file matching both globs counts as social only. Paths come back sorted
// so repeated loads see identical input order.
func Discover(dir, socialGlob, envGlob string) (social, env []string, err error) {
	if _, statErr := os.Stat(dir); statErr != nil {
		return nil, nil, fmt.Errorf("data dir: %w", statErr)
	}

	social, err = filepath.Glob(filepath.Join(dir, socialGlob))
	if err != nil {
		return nil, nil, fmt.Errorf("social glob: %w", err)
	}
	envMatches, err := filepath.Glob(filepath.Join(dir, envGlob))
	if err != nil {
		return nil, nil, fmt.Errorf("env glob: %w", err)
	}

	isSocial := make(map[string]bool, len(social))
	for _, p := range social {
		isSocial[p] = true
	}
	for _, p := range envMatches {
		if !isSocial[p] {
			env = append(env, p)
		}
	}

	sort.Strings(social)
	sort.Strings(env)
	return social, env, nil
}
