// Package correlate joins normalized social and environmental records on
// (region_code, time_bucket) and computes Pearson correlations between
// activism scores and indicator values over the joined rows.
package correlate

import (
	"sort"
	"time"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

type groupKey struct {
	region string
	bucket string
	theme  string
}

type socialGroup struct {
	start           time.Time
	sampleSize      int
	totalEngagement int64
	sentimentSum    float64
}

type bucketKey struct {
	region string
	bucket string
}

type envEntry struct {
	indicator string
	value     float64
	unit      string
	start     time.Time
}

// Join inner-joins social theme groups with environmental indicators sharing a
// (region_code, time_bucket) key. A post contributes to one group per theme it
// carries; posts without hashtags group under the untagged theme. Keys present
// on only one side come back as coverage gaps instead of joined rows. Output
// ordering is deterministic regardless of input order.
func Join(social []domain.SocialRecord, env []domain.EnvIndicatorRecord, weights domain.ScoreWeights) ([]domain.JoinedMetric, []domain.CoverageGap) {
	groups := make(map[groupKey]*socialGroup)
	socialPosts := make(map[bucketKey]int)
	for _, rec := range social {
		bk := bucketKey{rec.RegionCode, rec.TimeBucket}
		socialPosts[bk]++

		for _, theme := range rec.Themes() {
			key := groupKey{rec.RegionCode, rec.TimeBucket, theme}
			g := groups[key]
			if g == nil {
				g = &socialGroup{start: rec.BucketStart}
				groups[key] = g
			}
			g.sampleSize++
			g.totalEngagement += rec.EngagementCount
			g.sentimentSum += rec.SentimentScore
		}
	}

	envByBucket := make(map[bucketKey][]envEntry)
	for _, rec := range env {
		bk := bucketKey{rec.RegionCode, rec.TimeBucket}
		envByBucket[bk] = append(envByBucket[bk], envEntry{
			indicator: rec.IndicatorName,
			value:     rec.Value,
			unit:      rec.Unit,
			start:     rec.BucketStart,
		})
	}

	var metrics []domain.JoinedMetric
	for key, g := range groups {
		entries := envByBucket[bucketKey{key.region, key.bucket}]
		meanSentiment := g.sentimentSum / float64(g.sampleSize)
		for _, e := range entries {
			metrics = append(metrics, domain.JoinedMetric{
				RegionCode:      key.region,
				TimeBucket:      key.bucket,
				BucketStart:     g.start,
				Theme:           key.theme,
				Indicator:       e.indicator,
				ActivismScore:   domain.ActivismScore(g.totalEngagement, meanSentiment, weights),
				EnvValue:        e.value,
				Unit:            e.unit,
				SampleSize:      g.sampleSize,
				TotalEngagement: g.totalEngagement,
				MeanSentiment:   meanSentiment,
			})
		}
	}

	gaps := coverageGaps(groups, socialPosts, envByBucket)

	sort.Slice(metrics, func(i, j int) bool {
		a, b := metrics[i], metrics[j]
		if a.RegionCode != b.RegionCode {
			return a.RegionCode < b.RegionCode
		}
		if !a.BucketStart.Equal(b.BucketStart) {
			return a.BucketStart.Before(b.BucketStart)
		}
		if a.Theme != b.Theme {
			return a.Theme < b.Theme
		}
		return a.Indicator < b.Indicator
	})
	return metrics, gaps
}

func coverageGaps(groups map[groupKey]*socialGroup, socialPosts map[bucketKey]int, envByBucket map[bucketKey][]envEntry) []domain.CoverageGap {
	socialStarts := make(map[bucketKey]time.Time, len(socialPosts))
	for key, g := range groups {
		socialStarts[bucketKey{key.region, key.bucket}] = g.start
	}

	var gaps []domain.CoverageGap
	for bk, count := range socialPosts {
		if _, ok := envByBucket[bk]; ok {
			continue
		}
		gaps = append(gaps, domain.CoverageGap{
			RegionCode:   bk.region,
			TimeBucket:   bk.bucket,
			BucketStart:  socialStarts[bk],
			Missing:      domain.GapMissingEnvironmental,
			PresentCount: count,
		})
	}
	for bk, entries := range envByBucket {
		if _, ok := socialPosts[bk]; ok {
			continue
		}
		gaps = append(gaps, domain.CoverageGap{
			RegionCode:   bk.region,
			TimeBucket:   bk.bucket,
			BucketStart:  entries[0].start,
			Missing:      domain.GapMissingSocial,
			PresentCount: len(entries),
		})
	}

	sort.Slice(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if a.RegionCode != b.RegionCode {
			return a.RegionCode < b.RegionCode
		}
		if !a.BucketStart.Equal(b.BucketStart) {
			return a.BucketStart.Before(b.BucketStart)
		}
		return a.Missing < b.Missing
	})
	return gaps
}
