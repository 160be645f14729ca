package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

func TestDecodeMessage(t *testing.T) {
	msg := kafkago.Message{
		Topic:     "climate-social-posts",
		Partition: 2,
		Offset:    42,
		Value: []byte(`{
			"post_id": "s1",
			"timestamp": "2024-01-03T09:00:00Z",
			"region": "NYC",
			"hashtags": "#COP29,#ClimateJustice",
			"sentiment": "0.25",
			"engagement": "40"
		}`),
	}

	rec, err := decodeMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, "s1", rec.PostID)
	assert.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, "NYC", rec.RawRegion)
	assert.Empty(t, rec.RegionCode)
	assert.Equal(t, []string{"climatejustice", "cop29"}, rec.Hashtags)
	assert.InDelta(t, 0.25, rec.SentimentScore, 1e-9)
	assert.Equal(t, int64(40), rec.EngagementCount)
}

func TestDecodeMessageInvalidJSON(t *testing.T) {
	msg := kafkago.Message{Value: []byte("not json")}

	_, err := decodeMessage(msg)
	assert.ErrorContains(t, err, "decode social post")
}

func TestDecodeMessageMissingSentiment(t *testing.T) {
	msg := kafkago.Message{
		Topic:     "climate-social-posts",
		Partition: 0,
		Offset:    7,
		Value:     []byte(`{"post_id":"s2","timestamp":"2024-01-03","region":"NYC","engagement":"5"}`),
	}

	_, err := decodeMessage(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment")
	assert.Contains(t, err.Error(), "kafka:climate-social-posts/0:7")
}

func TestDecodeMessageInvalidRow(t *testing.T) {
	msg := kafkago.Message{
		Value: []byte(`{"post_id":"s3","timestamp":"whenever","region":"NYC","sentiment":"0.1","engagement":"5"}`),
	}

	_, err := decodeMessage(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestMetricToMessage(t *testing.T) {
	m := domain.JoinedMetric{
		RegionCode:      "NA-US-CA",
		TimeBucket:      "2024-W01",
		BucketStart:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Theme:           "climatestrike",
		Indicator:       "air_quality_index",
		ActivismScore:   30,
		EnvValue:        42,
		SampleSize:      2,
		TotalEngagement: 30,
	}

	msg, err := metricToMessage(m, "snap-1")
	require.NoError(t, err)

	assert.Equal(t, []byte("NA-US-CA|2024-W01|climatestrike|air_quality_index"), msg.Key)
	assert.Contains(t, string(msg.Value), `"activism_score":30`)
	assert.Contains(t, string(msg.Value), `"env_value":42`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "snapshot_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("snap-1"), msg.Headers[0].Value)
	assert.Equal(t, "indicator", msg.Headers[1].Key)
	assert.Equal(t, []byte("air_quality_index"), msg.Headers[1].Value)
}
