package correlate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

func metricPoint(indicator string, activism, env float64) domain.JoinedMetric {
	return domain.JoinedMetric{Indicator: indicator, ActivismScore: activism, EnvValue: env}
}

func series(indicator string, points ...[2]float64) []domain.JoinedMetric {
	out := make([]domain.JoinedMetric, 0, len(points))
	for _, p := range points {
		out = append(out, metricPoint(indicator, p[0], p[1]))
	}
	return out
}

func TestCorrelatePerfectLinear(t *testing.T) {
	tests := []struct {
		name string
		rows []domain.JoinedMetric
		want float64
	}{
		{
			name: "positive",
			rows: series("aqi", [2]float64{1, 10}, [2]float64{2, 20}, [2]float64{3, 30}, [2]float64{4, 40}),
			want: 1,
		},
		{
			name: "negative",
			rows: series("aqi", [2]float64{1, 40}, [2]float64{2, 30}, [2]float64{3, 20}, [2]float64{4, 10}),
			want: -1,
		},
		{
			name: "affine with offset",
			rows: series("aqi", [2]float64{10, 3.5}, [2]float64{20, 5.5}, [2]float64{30, 7.5}),
			want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stats := Correlate(tc.rows, 3)
			require.Len(t, stats, 1)
			s := stats[0]
			assert.Equal(t, StatusOK, s.Status)
			assert.Equal(t, len(tc.rows), s.SampleSize)
			assert.InDelta(t, tc.want, s.Coefficient, 1e-9)
			assert.GreaterOrEqual(t, s.Coefficient, -1.0)
			assert.LessOrEqual(t, s.Coefficient, 1.0)
		})
	}
}

func TestCorrelateKnownValue(t *testing.T) {
	rows := series("aqi",
		[2]float64{1, 2}, [2]float64{2, 1}, [2]float64{3, 4}, [2]float64{4, 3},
	)
	stats := Correlate(rows, 3)
	require.Len(t, stats, 1)
	assert.Equal(t, StatusOK, stats[0].Status)
	assert.InDelta(t, 0.6, stats[0].Coefficient, 1e-9)
}

func TestCorrelateInsufficientSamples(t *testing.T) {
	rows := series("aqi", [2]float64{1, 10}, [2]float64{2, 20})

	stats := Correlate(rows, 3)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, StatusInsufficientData, s.Status)
	assert.Equal(t, 2, s.SampleSize)
	assert.Equal(t, "need at least 3 joined rows, have 2", s.Reason)
	assert.Zero(t, s.Coefficient)
}

func TestCorrelateZeroVariance(t *testing.T) {
	tests := []struct {
		name   string
		rows   []domain.JoinedMetric
		reason string
	}{
		{
			name:   "flat activism",
			rows:   series("aqi", [2]float64{5, 10}, [2]float64{5, 20}, [2]float64{5, 30}),
			reason: "zero variance in activism scores",
		},
		{
			name:   "flat indicator",
			rows:   series("aqi", [2]float64{1, 42}, [2]float64{2, 42}, [2]float64{3, 42}),
			reason: "zero variance in indicator values",
		},
		{
			name:   "flat both",
			rows:   series("aqi", [2]float64{5, 42}, [2]float64{5, 42}, [2]float64{5, 42}),
			reason: "zero variance in both series",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stats := Correlate(tc.rows, 3)
			require.Len(t, stats, 1)
			assert.Equal(t, StatusInsufficientData, stats[0].Status)
			assert.Equal(t, tc.reason, stats[0].Reason)
		})
	}
}

func TestCorrelateNoRows(t *testing.T) {
	stats := Correlate(nil, 0)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Empty(t, s.Indicator)
	assert.Equal(t, StatusInsufficientData, s.Status)
	assert.Zero(t, s.SampleSize)
	assert.Equal(t, fmt.Sprintf("need at least %d joined rows, have 0", DefaultMinSamples), s.Reason)
}

func TestCorrelatePerIndicator(t *testing.T) {
	rows := append(
		series("temperature_anomaly_c", [2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3}),
		series("air_quality_index", [2]float64{1, 30}, [2]float64{2, 20}, [2]float64{3, 10})...,
	)

	stats := Correlate(rows, 3)
	require.Len(t, stats, 2)
	assert.Equal(t, "air_quality_index", stats[0].Indicator)
	assert.InDelta(t, -1, stats[0].Coefficient, 1e-9)
	assert.Equal(t, "temperature_anomaly_c", stats[1].Indicator)
	assert.InDelta(t, 1, stats[1].Coefficient, 1e-9)
}

func TestCorrelateMixedSufficiency(t *testing.T) {
	rows := append(
		series("aqi", [2]float64{1, 10}, [2]float64{2, 20}, [2]float64{3, 15}),
		metricPoint("temp", 1, 1),
	)

	stats := Correlate(rows, 3)
	require.Len(t, stats, 2)
	assert.Equal(t, StatusOK, stats[0].Status)
	assert.Equal(t, StatusInsufficientData, stats[1].Status)
	assert.Equal(t, 1, stats[1].SampleSize)
}

func TestAccumulatorMatchesTwoPass(t *testing.T) {
	points := [][2]float64{{3, 9}, {1, 2}, {4, 7}, {1.5, 3}, {9, 12}, {2.6, 4.1}}

	var acc accumulator
	var sumA, sumE float64
	for _, p := range points {
		acc.add(p[0], p[1])
		sumA += p[0]
		sumE += p[1]
	}
	n := float64(len(points))
	meanA, meanE := sumA/n, sumE/n

	var m2A, m2E, co float64
	for _, p := range points {
		m2A += (p[0] - meanA) * (p[0] - meanA)
		m2E += (p[1] - meanE) * (p[1] - meanE)
		co += (p[0] - meanA) * (p[1] - meanE)
	}

	assert.InDelta(t, meanA, acc.meanA, 1e-9)
	assert.InDelta(t, meanE, acc.meanE, 1e-9)
	assert.InDelta(t, m2A, acc.m2A, 1e-9)
	assert.InDelta(t, m2E, acc.m2E, 1e-9)
	assert.InDelta(t, co, acc.comoment, 1e-9)
}
