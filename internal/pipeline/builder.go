// Package pipeline turns the raw datasets into immutable snapshots and keeps
// them current. The Builder runs one load-score-normalize-join pass; the
// Refresher decides when to run it again.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/climate-trends-analytics/internal/correlate"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/loader"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
	"github.com/couchcryptid/climate-trends-analytics/internal/regions"
	"github.com/couchcryptid/climate-trends-analytics/internal/scorer"
)

// BuildOptions locates the datasets and fixes the derivation parameters a
// snapshot is built with.
type BuildOptions struct {
	DataDir            string
	SocialGlob         string
	EnvGlob            string
	Granularity        domain.Granularity
	Weights            domain.ScoreWeights
	MinSuccessFraction float64
}

// Builder produces snapshots: discover files, load and validate both
// datasets, fill missing sentiment, resolve regions, bucket timestamps, join,
// and stamp the result. Builds are independent; nothing carries over between
// them except the resolver's memo.
type Builder struct {
	opts     BuildOptions
	schema   loader.Schema
	resolver *regions.Resolver
	scorer   scorer.Scorer
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewBuilder creates a Builder. Pass a nil scorer when sentiment must come
// from the data itself.
func NewBuilder(opts BuildOptions, schema loader.Schema, resolver *regions.Resolver, sc scorer.Scorer, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		opts:     opts,
		schema:   schema,
		resolver: resolver,
		scorer:   sc,
		logger:   logger,
		metrics:  metrics,
	}
}

// Build runs one complete pass and returns the snapshot. Streamed records are
// appended to the file-loaded social dataset, with duplicates against file
// rows quarantined. A failed build leaves no partial state behind.
func (b *Builder) Build(ctx context.Context, streamed []domain.SocialRecord) (*domain.Snapshot, error) {
	start := time.Now()

	snap, err := b.build(ctx, streamed)
	if err != nil {
		b.metrics.SnapshotBuilds.WithLabelValues("error").Inc()
		return nil, err
	}

	b.metrics.SnapshotBuilds.WithLabelValues("success").Inc()
	b.metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	b.metrics.SnapshotJoinedMetrics.Set(float64(len(snap.Metrics)))
	b.metrics.SnapshotCoverageGaps.Set(float64(len(snap.Gaps)))
	b.metrics.SnapshotRecords.WithLabelValues("social").Set(float64(len(snap.Social)))
	b.metrics.SnapshotRecords.WithLabelValues("env").Set(float64(len(snap.Env)))

	b.logger.Info("snapshot built",
		"id", snap.ID,
		"social_records", len(snap.Social),
		"env_records", len(snap.Env),
		"joined_metrics", len(snap.Metrics),
		"coverage_gaps", len(snap.Gaps),
		"unknown_regions", snap.Diagnostics.UnknownRegions,
		"duration", time.Since(start),
	)
	return snap, nil
}

func (b *Builder) build(ctx context.Context, streamed []domain.SocialRecord) (*domain.Snapshot, error) {
	socialPaths, envPaths, err := loader.Discover(b.opts.DataDir, b.opts.SocialGlob, b.opts.EnvGlob)
	if err != nil {
		return nil, err
	}

	ld := loader.New(b.schema, loader.Options{
		MinSuccessFraction: b.opts.MinSuccessFraction,
		Granularity:        b.opts.Granularity,
		ScorerAvailable:    b.scorer != nil,
	}, b.logger)

	social, err := ld.LoadSocial(socialPaths)
	if err != nil {
		return nil, err
	}
	env, err := ld.LoadEnv(envPaths)
	if err != nil {
		return nil, err
	}

	b.metrics.RowsLoaded.WithLabelValues("social").Add(float64(social.Diagnostics.RowsLoaded))
	b.metrics.RowsQuarantined.WithLabelValues("social").Add(float64(len(social.Diagnostics.Quarantined)))
	b.metrics.RowsLoaded.WithLabelValues("env").Add(float64(env.Diagnostics.RowsLoaded))
	b.metrics.RowsQuarantined.WithLabelValues("env").Add(float64(len(env.Diagnostics.Quarantined)))

	if err := b.scorePending(ctx, social); err != nil {
		return nil, fmt.Errorf("score sentiment: %w", err)
	}

	mergeStreamed(social, streamed)

	diag := domain.Diagnostics{
		Social:  social.Diagnostics,
		Env:     env.Diagnostics,
		Sources: append(social.Sources, env.Sources...),
	}
	b.normalize(social.Records, env, &diag)

	metrics, gaps := correlate.Join(social.Records, env.Records, b.opts.Weights)

	return &domain.Snapshot{
		ID:          uuid.NewString(),
		BuiltAt:     domain.Now(),
		Granularity: b.opts.Granularity,
		Weights:     b.opts.Weights,
		Social:      social.Records,
		Env:         env.Records,
		Metrics:     metrics,
		Gaps:        gaps,
		Regions:     b.resolver.Regions(),
		Diagnostics: diag,
	}, nil
}

// scorePending fills sentiment for records loaded from files without a
// sentiment column. A scoring failure fails the build: silently zero-filled
// sentiment would skew every downstream correlation.
func (b *Builder) scorePending(ctx context.Context, social *loader.SocialResult) error {
	if len(social.PendingScore) == 0 || b.scorer == nil {
		return nil
	}

	texts := make([]string, len(social.PendingScore))
	for i, idx := range social.PendingScore {
		texts[i] = social.Records[idx].Text
	}

	scores, err := b.scorer.Score(ctx, texts)
	if err != nil {
		return err
	}
	if len(scores) != len(texts) {
		return fmt.Errorf("scorer %s returned %d scores for %d posts", b.scorer.Name(), len(scores), len(texts))
	}

	for i, idx := range social.PendingScore {
		social.Records[idx].SentimentScore = scores[i]
	}
	b.logger.Info("sentiment scored", "provider", b.scorer.Name(), "posts", len(texts))
	return nil
}

// mergeStreamed appends streamed posts to the loaded dataset. Post ids
// already present win: files are the source of truth, the stream a tail.
func mergeStreamed(social *loader.SocialResult, streamed []domain.SocialRecord) {
	if len(streamed) == 0 {
		return
	}

	seen := make(map[string]bool, len(social.Records))
	for _, rec := range social.Records {
		seen[rec.PostID] = true
	}

	for _, rec := range streamed {
		social.Diagnostics.RowsSeen++
		if seen[rec.PostID] {
			social.Diagnostics.Quarantined = append(social.Diagnostics.Quarantined, domain.RowValidationError{
				Source: "stream", Field: "post_id",
				Reason: fmt.Sprintf("duplicate post_id %q", rec.PostID),
			})
			continue
		}
		seen[rec.PostID] = true
		social.Records = append(social.Records, rec)
		social.Diagnostics.RowsLoaded++
	}
}

// normalize resolves region codes and assigns time buckets in place, then
// drops duplicate environmental observations that collide after resolution.
// Ambiguity warnings are deduplicated by raw spelling across both datasets.
func (b *Builder) normalize(social []domain.SocialRecord, env *loader.EnvResult, diag *domain.Diagnostics) {
	warned := make(map[string]bool)

	warn := func(amb *domain.AmbiguityWarning) {
		if amb == nil || warned[amb.RawRegion] {
			return
		}
		warned[amb.RawRegion] = true
		diag.Ambiguities = append(diag.Ambiguities, *amb)
		b.metrics.RegionAmbiguities.Inc()
	}

	for i := range social {
		code, amb := b.resolver.Resolve(social[i].RawRegion)
		warn(amb)
		if code == domain.RegionUnknown {
			diag.UnknownRegions++
			b.metrics.RegionsUnknown.Inc()
		}
		social[i].RegionCode = code

		bucket := domain.BucketFor(social[i].Timestamp, b.opts.Granularity)
		social[i].TimeBucket = bucket.Key
		social[i].BucketStart = bucket.Start
	}

	type envKey struct {
		region, bucket, indicator string
	}
	kept := env.Records[:0]
	seen := make(map[envKey]bool, len(env.Records))

	for _, rec := range env.Records {
		code, amb := b.resolver.Resolve(rec.RawRegion)
		warn(amb)
		if code == domain.RegionUnknown {
			diag.UnknownRegions++
			b.metrics.RegionsUnknown.Inc()
		}
		rec.RegionCode = code

		key := envKey{region: code, bucket: rec.TimeBucket, indicator: rec.IndicatorName}
		if seen[key] {
			env.Diagnostics.RowsLoaded--
			env.Diagnostics.Quarantined = append(env.Diagnostics.Quarantined, domain.RowValidationError{
				Source: "normalize", Field: "indicator",
				Reason: fmt.Sprintf("duplicate observation for (%s, %s, %s)", code, rec.TimeBucket, rec.IndicatorName),
			})
			continue
		}
		seen[key] = true
		kept = append(kept, rec)
	}
	env.Records = kept
	diag.Env = env.Diagnostics
}
