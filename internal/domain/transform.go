package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Granularity selects the time-bucket grain both datasets are joined on.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a configured granularity string.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	default:
		return "", fmt.Errorf("invalid granularity %q (want day, week, or month)", s)
	}
}

// Bucket is a canonical time period: a join key plus its UTC start instant.
type Bucket struct {
	Key   string
	Start time.Time
}

var (
	// weekKeyRe matches ISO-week bucket keys, e.g. "2024-W01".
	weekKeyRe = regexp.MustCompile(`^(\d{4})-W(\d{1,2})$`)

	// monthKeyRe matches month bucket keys, e.g. "2024-01".
	monthKeyRe = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
)

// timestampLayouts are tried in order when parsing free-form timestamps.
// All layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTimestamp parses a source timestamp string, trying each supported
// layout in order. The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// BucketFor maps an instant to its bucket at the given granularity.
// Deterministic and UTC-based: the same instant always lands in the same bucket.
func BucketFor(t time.Time, g Granularity) Bucket {
	t = t.UTC()
	switch g {
	case GranularityDay:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return Bucket{Key: start.Format("2006-01-02"), Start: start}
	case GranularityWeek:
		year, week := t.ISOWeek()
		return Bucket{Key: fmt.Sprintf("%04d-W%02d", year, week), Start: isoWeekStart(year, week)}
	case GranularityMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Bucket{Key: start.Format("2006-01"), Start: start}
	default:
		return Bucket{}
	}
}

// isoWeekStart returns the UTC Monday beginning the given ISO 8601 week.
// January 4th always falls in week 1, so week 1's Monday is derived from it
// and later weeks are 7-day offsets.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	return monday.AddDate(0, 0, (week-1)*7)
}

// ParsePeriod parses an environmental-row time period and re-buckets it at the
// configured granularity. Accepted shapes: any bucket key ("2024-W01",
// "2024-01", "2024-01-15") or a timestamp in a supported layout. Re-bucketing
// uses the period's start instant, so a month period under week granularity
// lands in the ISO week containing the 1st.
func ParsePeriod(s string, g Granularity) (Bucket, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Bucket{}, errors.New("empty period")
	}

	if m := weekKeyRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		if week < 1 || week > 53 {
			return Bucket{}, fmt.Errorf("period %q: ISO week out of range", s)
		}
		return BucketFor(isoWeekStart(year, week), g), nil
	}

	if m := monthKeyRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Bucket{}, fmt.Errorf("period %q: month out of range", s)
		}
		return BucketFor(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), g), nil
	}

	t, err := ParseTimestamp(s)
	if err != nil {
		return Bucket{}, fmt.Errorf("unrecognized period %q", s)
	}
	return BucketFor(t, g), nil
}

// ThemeUntagged is the reserved theme grouping posts that carry no hashtags.
const ThemeUntagged = "untagged"

// NormalizeTheme canonicalizes a hashtag to its theme form: leading '#'
// stripped, lowercased, surrounding whitespace removed.
func NormalizeTheme(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "#")
	return strings.ToLower(strings.TrimSpace(tag))
}

// ParseHashtags parses a hashtag cell into sorted, deduplicated themes.
// Accepts a JSON string array (`["#NetZero","#JustTransition"]`) or a list
// delimited by commas, semicolons, or whitespace. Returns nil when the cell
// holds no usable tags.
func ParseHashtags(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	var parts []string
	if strings.HasPrefix(cell, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(cell), &arr); err == nil {
			parts = arr
		}
	}
	if parts == nil {
		parts = strings.FieldsFunc(cell, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
	}

	seen := make(map[string]bool, len(parts))
	themes := make([]string, 0, len(parts))
	for _, p := range parts {
		theme := NormalizeTheme(p)
		if theme == "" || seen[theme] {
			continue
		}
		seen[theme] = true
		themes = append(themes, theme)
	}
	if len(themes) == 0 {
		return nil
	}
	sort.Strings(themes)
	return themes
}

// ClampSentiment forces a sentiment value into [-1, 1]. Loader validation
// rejects out-of-range source values; clamping is for scorer outputs, which
// may drift slightly past the bounds.
func ClampSentiment(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
