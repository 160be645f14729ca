// Package query evaluates read-only operations against the current snapshot.
// All operations are pure functions of the snapshot and an explicit filter,
// so concurrent callers with the same filter always see the same answer.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Filter narrows an operation to a region, time range, theme set, and
// indicator. Zero values leave a dimension unconstrained. Records in the
// unknown region are excluded unless IncludeUnknown is set or the unknown
// region is requested explicitly.
type Filter struct {
	Region         string
	From           time.Time
	To             time.Time
	Themes         []string
	Indicator      string
	IncludeUnknown bool
}

// Normalize folds themes to their canonical form, dropping duplicates, so
// equivalent filters share a cache key.
func (f Filter) Normalize() Filter {
	f.Region = strings.TrimSpace(f.Region)
	f.Indicator = strings.ToLower(strings.TrimSpace(f.Indicator))
	if len(f.Themes) == 0 {
		return f
	}
	seen := make(map[string]bool, len(f.Themes))
	themes := make([]string, 0, len(f.Themes))
	for _, raw := range f.Themes {
		theme := domain.NormalizeTheme(raw)
		if theme == "" || seen[theme] {
			continue
		}
		seen[theme] = true
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	f.Themes = themes
	return f
}

// Key renders the canonical cache-key fragment for a normalized filter.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("region=")
	b.WriteString(f.Region)
	b.WriteString("|from=")
	if !f.From.IsZero() {
		b.WriteString(f.From.UTC().Format(time.RFC3339))
	}
	b.WriteString("|to=")
	if !f.To.IsZero() {
		b.WriteString(f.To.UTC().Format(time.RFC3339))
	}
	b.WriteString("|themes=")
	b.WriteString(strings.Join(f.Themes, ","))
	b.WriteString("|indicator=")
	b.WriteString(f.Indicator)
	b.WriteString("|unknown=")
	b.WriteString(strconv.FormatBool(f.IncludeUnknown))
	return b.String()
}

func (f Filter) matchRegion(code string) bool {
	if f.Region != "" {
		return code == f.Region
	}
	if code == domain.RegionUnknown {
		return f.IncludeUnknown
	}
	return true
}

func (f Filter) matchTime(start time.Time) bool {
	if !f.From.IsZero() && start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && start.After(f.To) {
		return false
	}
	return true
}

func (f Filter) matchTheme(theme string) bool {
	if len(f.Themes) == 0 {
		return true
	}
	for _, t := range f.Themes {
		if t == theme {
			return true
		}
	}
	return false
}

func (f Filter) matchMetric(m domain.JoinedMetric) bool {
	if !f.matchRegion(m.RegionCode) || !f.matchTime(m.BucketStart) || !f.matchTheme(m.Theme) {
		return false
	}
	return f.Indicator == "" || m.Indicator == f.Indicator
}

func (f Filter) matchGap(g domain.CoverageGap) bool {
	return f.matchRegion(g.RegionCode) && f.matchTime(g.BucketStart)
}

// matchSocial applies region, time, and theme constraints to a post. A post
// without hashtags carries the untagged theme for matching purposes.
func (f Filter) matchSocial(rec domain.SocialRecord) bool {
	if !f.matchRegion(rec.RegionCode) || !f.matchTime(rec.BucketStart) {
		return false
	}
	if len(f.Themes) == 0 {
		return true
	}
	for _, theme := range rec.Themes() {
		if f.matchTheme(theme) {
			return true
		}
	}
	return false
}
