// Package kafka streams social posts into the refresher and publishes joined
// metrics after each snapshot swap.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/loader"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
)

// Ingestor accepts one validated streamed post and the callback committing
// its offset once the post is part of a served snapshot.
type Ingestor interface {
	Ingest(rec domain.SocialRecord, commit func(context.Context) error)
}

// Reader consumes raw social posts from the ingest topic. Offsets are not
// committed at fetch time; the commit callback handed to the ingestor runs
// after the next snapshot swap, so an unswapped post replays instead of
// disappearing.
type Reader struct {
	reader   *kafkago.Reader
	ingestor Ingestor
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewReader creates a consumer-group reader for the configured ingest topic.
func NewReader(cfg config.KafkaConfig, ing Ingestor, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		GroupID:       cfg.GroupID,
		MinBytes:      1,
		MaxBytes:      10e6,
		QueueCapacity: cfg.BatchSize,
	})
	return &Reader{reader: r, ingestor: ing, logger: logger, metrics: metrics}
}

// Run consumes until the context is cancelled. Messages that fail to decode
// or validate are logged and committed immediately: a poison message must not
// wedge the partition.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("kafka ingest started", "topic", r.reader.Config().Topic, "group", r.reader.Config().GroupID)

	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				r.logger.Info("kafka ingest stopping")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		rec, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			r.logger.Warn("dropping invalid post message",
				"error", decodeErr,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if err := r.reader.CommitMessages(ctx, msg); err != nil {
				r.logger.Warn("commit invalid message failed", "error", err)
			}
			continue
		}

		r.metrics.PostsConsumed.Inc()
		r.ingestor.Ingest(rec, func(commitCtx context.Context) error {
			return r.reader.CommitMessages(commitCtx, msg)
		})
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// decodeMessage unmarshals a social post message and runs it through the same
// row validation as a CSV row. Streamed posts must carry their own sentiment;
// the external scorer only covers file loads.
func decodeMessage(msg kafkago.Message) (domain.SocialRecord, error) {
	var raw domain.RawSocialRow
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return domain.SocialRecord{}, fmt.Errorf("decode social post: %w", err)
	}

	source := fmt.Sprintf("kafka:%s/%d", msg.Topic, msg.Partition)
	rec, validationErr := loader.ParseSocialRow(raw, source, int(msg.Offset), true)
	if validationErr != nil {
		return domain.SocialRecord{}, validationErr
	}
	return rec, nil
}
