package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
)

// Writer publishes a snapshot's joined metrics to the metrics topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured metrics topic.
func NewWriter(cfg config.KafkaConfig, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.MetricsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// PublishMetrics serializes and publishes every joined metric of the snapshot
// in a single WriteMessages call.
func (w *Writer) PublishMetrics(ctx context.Context, snap *domain.Snapshot) error {
	if len(snap.Metrics) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(snap.Metrics))
	for i := range snap.Metrics {
		msg, err := metricToMessage(snap.Metrics[i], snap.ID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish joined metrics: %w", err)
	}

	w.metrics.MetricsPublished.Add(float64(len(msgs)))
	w.logger.Info("joined metrics published", "snapshot", snap.ID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// metricToMessage marshals a joined metric. The key concatenates the join
// key, so one series always lands on one partition in order.
func metricToMessage(m domain.JoinedMetric, snapshotID string) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize joined metric: %w", err)
	}
	key := strings.Join([]string{m.RegionCode, m.TimeBucket, m.Theme, m.Indicator}, "|")
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(snapshotID)},
			{Key: "indicator", Value: []byte(m.Indicator)},
		},
	}, nil
}
