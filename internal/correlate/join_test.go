package correlate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

var wk1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
var wk2 = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func socialRec(id, region, bucket string, start time.Time, tags []string, sentiment float64, engagement int64) domain.SocialRecord {
	return domain.SocialRecord{
		PostID:          id,
		Timestamp:       start,
		RegionCode:      region,
		TimeBucket:      bucket,
		BucketStart:     start,
		Hashtags:        tags,
		SentimentScore:  sentiment,
		EngagementCount: engagement,
	}
}

func envRec(region, bucket string, start time.Time, indicator string, value float64, unit string) domain.EnvIndicatorRecord {
	return domain.EnvIndicatorRecord{
		RegionCode:    region,
		TimeBucket:    bucket,
		BucketStart:   start,
		IndicatorName: indicator,
		Value:         value,
		Unit:          unit,
	}
}

func TestJoinSingleGroup(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, []string{"climatestrike"}, 0.5, 10),
		socialRec("p2", "NA-US-CA", "2024-W01", wk1, []string{"climatestrike"}, -0.5, 20),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "air_quality_index", 42, "AQI"),
	}

	metrics, gaps := Join(social, env, domain.DefaultScoreWeights())

	require.Len(t, metrics, 1)
	assert.Empty(t, gaps)

	m := metrics[0]
	assert.Equal(t, "NA-US-CA", m.RegionCode)
	assert.Equal(t, "2024-W01", m.TimeBucket)
	assert.Equal(t, wk1, m.BucketStart)
	assert.Equal(t, "climatestrike", m.Theme)
	assert.Equal(t, "air_quality_index", m.Indicator)
	assert.Equal(t, 42.0, m.EnvValue)
	assert.Equal(t, "AQI", m.Unit)
	assert.Equal(t, 2, m.SampleSize)
	assert.Equal(t, int64(30), m.TotalEngagement)
	assert.Equal(t, 0.0, m.MeanSentiment)
	assert.Equal(t, 30.0, m.ActivismScore)
}

func TestJoinThemeFanOut(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, []string{"climatestrike", "cop29"}, 0.5, 10),
		socialRec("p2", "NA-US-CA", "2024-W01", wk1, []string{"cop29"}, 0.5, 20),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "air_quality_index", 42, "AQI"),
	}

	metrics, _ := Join(social, env, domain.DefaultScoreWeights())

	require.Len(t, metrics, 2)
	assert.Equal(t, "climatestrike", metrics[0].Theme)
	assert.Equal(t, 1, metrics[0].SampleSize)
	assert.Equal(t, int64(10), metrics[0].TotalEngagement)
	assert.Equal(t, "cop29", metrics[1].Theme)
	assert.Equal(t, 2, metrics[1].SampleSize)
	assert.Equal(t, int64(30), metrics[1].TotalEngagement)
}

func TestJoinUntaggedTheme(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, nil, 0.25, 5),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "air_quality_index", 42, "AQI"),
	}

	metrics, _ := Join(social, env, domain.DefaultScoreWeights())

	require.Len(t, metrics, 1)
	assert.Equal(t, domain.ThemeUntagged, metrics[0].Theme)
}

func TestJoinPerIndicator(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, []string{"climatestrike"}, 0.5, 10),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "temperature_anomaly_c", 1.3, "C"),
		envRec("NA-US-CA", "2024-W01", wk1, "air_quality_index", 42, "AQI"),
	}

	metrics, gaps := Join(social, env, domain.DefaultScoreWeights())

	assert.Empty(t, gaps)
	require.Len(t, metrics, 2)
	assert.Equal(t, "air_quality_index", metrics[0].Indicator)
	assert.Equal(t, "temperature_anomaly_c", metrics[1].Indicator)
	assert.Equal(t, metrics[0].ActivismScore, metrics[1].ActivismScore)
}

func TestJoinCoverageGaps(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, []string{"a"}, 0.5, 10),
		socialRec("p2", "NA-US-CA", "2024-W01", wk1, []string{"b"}, 0.5, 10),
		socialRec("p3", "NA-US-NY", "2024-W02", wk2, []string{"a"}, 0.5, 10),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-NY", "2024-W02", wk2, "air_quality_index", 50, "AQI"),
		envRec("EU-UK-LON", "2024-W01", wk1, "air_quality_index", 30, "AQI"),
		envRec("EU-UK-LON", "2024-W01", wk1, "temperature_anomaly_c", 0.8, "C"),
	}

	metrics, gaps := Join(social, env, domain.DefaultScoreWeights())

	require.Len(t, metrics, 1)
	assert.Equal(t, "NA-US-NY", metrics[0].RegionCode)

	require.Len(t, gaps, 2)
	assert.Equal(t, domain.CoverageGap{
		RegionCode:   "EU-UK-LON",
		TimeBucket:   "2024-W01",
		BucketStart:  wk1,
		Missing:      domain.GapMissingSocial,
		PresentCount: 2,
	}, gaps[0])
	assert.Equal(t, domain.CoverageGap{
		RegionCode:   "NA-US-CA",
		TimeBucket:   "2024-W01",
		BucketStart:  wk1,
		Missing:      domain.GapMissingEnvironmental,
		PresentCount: 2,
	}, gaps[1])
}

func TestJoinWeights(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-CA", "2024-W01", wk1, []string{"a"}, 0.5, 10),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "aqi", 42, ""),
	}

	metrics, _ := Join(social, env, domain.ScoreWeights{Engagement: 0.1, Sentiment: 2})

	require.Len(t, metrics, 1)
	assert.InDelta(t, 0.1*10+2*0.5, metrics[0].ActivismScore, 1e-12)
}

func TestJoinDeterministicOrder(t *testing.T) {
	social := []domain.SocialRecord{
		socialRec("p1", "NA-US-NY", "2024-W02", wk2, []string{"b", "a"}, 0.5, 10),
		socialRec("p2", "NA-US-CA", "2024-W01", wk1, []string{"a"}, 0.5, 20),
		socialRec("p3", "NA-US-CA", "2024-W02", wk2, []string{"c"}, -0.5, 30),
	}
	env := []domain.EnvIndicatorRecord{
		envRec("NA-US-CA", "2024-W01", wk1, "aqi", 42, ""),
		envRec("NA-US-CA", "2024-W02", wk2, "temp", 1.1, "C"),
		envRec("NA-US-NY", "2024-W02", wk2, "aqi", 55, ""),
	}

	metrics, gaps := Join(social, env, domain.DefaultScoreWeights())

	reversed := func(n int) []int {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = n - 1 - i
		}
		return idx
	}
	var socialRev []domain.SocialRecord
	for _, i := range reversed(len(social)) {
		socialRev = append(socialRev, social[i])
	}
	var envRev []domain.EnvIndicatorRecord
	for _, i := range reversed(len(env)) {
		envRev = append(envRev, env[i])
	}

	metricsRev, gapsRev := Join(socialRev, envRev, domain.DefaultScoreWeights())

	if diff := cmp.Diff(metrics, metricsRev); diff != "" {
		t.Errorf("join depends on input order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(gaps, gapsRev); diff != "" {
		t.Errorf("gaps depend on input order (-want +got):\n%s", diff)
	}

	for i := 1; i < len(metrics); i++ {
		prev, cur := metrics[i-1], metrics[i]
		ordered := prev.RegionCode < cur.RegionCode ||
			(prev.RegionCode == cur.RegionCode && prev.BucketStart.Before(cur.BucketStart)) ||
			(prev.RegionCode == cur.RegionCode && prev.BucketStart.Equal(cur.BucketStart) && prev.Theme <= cur.Theme)
		assert.True(t, ordered, "metrics[%d] out of order", i)
	}
}

func TestJoinEmptyInputs(t *testing.T) {
	metrics, gaps := Join(nil, nil, domain.DefaultScoreWeights())
	assert.Empty(t, metrics)
	assert.Empty(t, gaps)
}
