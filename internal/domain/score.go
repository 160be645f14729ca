package domain

import "fmt"

// ScoreWeights configures the weighted combination behind activism_score.
type ScoreWeights struct {
	Engagement float64 `json:"engagement"`
	Sentiment  float64 `json:"sentiment"`
}

// DefaultScoreWeights weighs both signals equally.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Engagement: 1, Sentiment: 1}
}

// ActivismScore combines a group's total engagement and mean sentiment into
// the single activism metric: engagement measures reach, sentiment direction.
func ActivismScore(totalEngagement int64, meanSentiment float64, w ScoreWeights) float64 {
	return w.Engagement*float64(totalEngagement) + w.Sentiment*meanSentiment
}

// Formula renders the combination for result metadata and CLI output, so
// consumers can see exactly how scores were produced.
func (w ScoreWeights) Formula() string {
	return fmt.Sprintf("%g*total_engagement + %g*mean_sentiment", w.Engagement, w.Sentiment)
}
