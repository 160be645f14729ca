package correlate

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Correlation result statuses.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// DefaultMinSamples is the smallest joined-row count a correlation is
// computed over when the caller does not set a threshold.
const DefaultMinSamples = 3

// Stat is the correlation outcome for one indicator. Coefficient is only
// meaningful when Status is ok.
type Stat struct {
	Indicator   string  `json:"indicator,omitempty"`
	Coefficient float64 `json:"coefficient"`
	SampleSize  int     `json:"sample_size"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
}

// accumulator tracks running means, second moments, and the co-moment of the
// activism/env series so one pass yields variances and covariance.
type accumulator struct {
	n            int
	meanA, meanE float64
	m2A, m2E     float64
	comoment     float64
}

func (a *accumulator) add(activism, env float64) {
	a.n++
	n := float64(a.n)
	da := activism - a.meanA
	a.meanA += da / n
	de := env - a.meanE
	a.meanE += de / n
	a.m2A += da * (activism - a.meanA)
	a.m2E += de * (env - a.meanE)
	a.comoment += da * (env - a.meanE)
}

// stat finalizes the accumulation for one indicator.
func (a *accumulator) stat(indicator string, minSamples int) Stat {
	s := Stat{Indicator: indicator, SampleSize: a.n}
	if a.n < minSamples {
		s.Status = StatusInsufficientData
		s.Reason = fmt.Sprintf("need at least %d joined rows, have %d", minSamples, a.n)
		return s
	}
	if a.m2A == 0 || a.m2E == 0 {
		s.Status = StatusInsufficientData
		s.Reason = zeroVarianceReason(a.m2A, a.m2E)
		return s
	}
	r := a.comoment / math.Sqrt(a.m2A*a.m2E)
	s.Coefficient = math.Max(-1, math.Min(1, r))
	s.Status = StatusOK
	return s
}

func zeroVarianceReason(m2A, m2E float64) string {
	switch {
	case m2A == 0 && m2E == 0:
		return "zero variance in both series"
	case m2A == 0:
		return "zero variance in activism scores"
	default:
		return "zero variance in indicator values"
	}
}

// Correlate computes one Pearson stat per indicator present in the joined
// rows. No rows at all yields a single insufficient-data stat so callers
// always get an explicit answer. minSamples at or below zero falls back to
// DefaultMinSamples. Stats come back sorted by indicator.
func Correlate(metrics []domain.JoinedMetric, minSamples int) []Stat {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if len(metrics) == 0 {
		return []Stat{{
			Status:     StatusInsufficientData,
			SampleSize: 0,
			Reason:     fmt.Sprintf("need at least %d joined rows, have 0", minSamples),
		}}
	}

	accs := make(map[string]*accumulator)
	for _, m := range metrics {
		acc := accs[m.Indicator]
		if acc == nil {
			acc = &accumulator{}
			accs[m.Indicator] = acc
		}
		acc.add(m.ActivismScore, m.EnvValue)
	}

	indicators := make([]string, 0, len(accs))
	for name := range accs {
		indicators = append(indicators, name)
	}
	sort.Strings(indicators)

	stats := make([]Stat, 0, len(indicators))
	for _, name := range indicators {
		stats = append(stats, accs[name].stat(name, minSamples))
	}
	return stats
}
