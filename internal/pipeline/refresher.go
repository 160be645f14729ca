package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
)

// SnapshotBuilder produces a snapshot from the current datasets plus any
// streamed records.
type SnapshotBuilder interface {
	Build(ctx context.Context, streamed []domain.SocialRecord) (*domain.Snapshot, error)
}

// SnapshotSink receives each successfully built snapshot.
type SnapshotSink interface {
	Swap(snap *domain.Snapshot)
}

// Archiver persists snapshots after they are swapped in.
type Archiver interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// Publisher emits a swapped-in snapshot's joined metrics.
type Publisher interface {
	PublishMetrics(ctx context.Context, snap *domain.Snapshot) error
}

// RefresherOptions tunes the rebuild loop. Archiver and Publisher are
// optional; nil disables them.
type RefresherOptions struct {
	// WatchDir is the dataset directory observed for changes. Watching is
	// active only when Watch is set and WatchDir is non-empty.
	WatchDir string
	Watch    bool

	// Debounce delays a watch-triggered rebuild until events stop arriving,
	// so a multi-file copy into the data dir rebuilds once.
	Debounce time.Duration

	// Interval adds periodic rebuilds on top of the other triggers; zero
	// disables them.
	Interval time.Duration

	// RateLimit is the minimum spacing between rebuilds from any trigger.
	RateLimit time.Duration

	Archiver  Archiver
	Publisher Publisher
}

// trigger is one scheduled rebuild. reserved marks triggers that already
// spent a rate-limiter token at admission.
type trigger struct {
	reason   string
	reserved bool
}

// Refresher owns the rebuild loop: it builds the first snapshot at startup,
// then rebuilds when the data directory changes, on an optional interval, on
// manual request, and when streamed posts arrive. A failed rebuild keeps the
// previous snapshot in service.
type Refresher struct {
	builder  SnapshotBuilder
	sink     SnapshotSink
	opts     RefresherOptions
	logger   *slog.Logger
	metrics  *observability.Metrics
	limiter  *rate.Limiter
	triggers chan trigger

	mu       sync.Mutex
	streamed []domain.SocialRecord
	buffered map[string]bool
	commits  []func(context.Context) error
}

// NewRefresher creates a Refresher feeding snapshots from builder into sink.
func NewRefresher(builder SnapshotBuilder, sink SnapshotSink, opts RefresherOptions, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	every := rate.Inf
	if opts.RateLimit > 0 {
		every = rate.Every(opts.RateLimit)
	}
	return &Refresher{
		builder:  builder,
		sink:     sink,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		limiter:  rate.NewLimiter(every, 1),
		triggers: make(chan trigger, 1),
		buffered: make(map[string]bool),
	}
}

// Exponential backoff for the first build: start at 200ms, double each
// retry, cap at 5s. Keeps startup retries short without tight-looping on a
// missing data directory.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Run executes the refresh loop until the context is cancelled. The first
// build retries with backoff so the service eventually turns ready even when
// the data arrives after startup.
func (r *Refresher) Run(ctx context.Context) error {
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	if r.opts.Watch && r.opts.WatchDir != "" {
		go r.watchLoop(ctx)
	}

	backoff := initialBackoff
	for {
		err := r.rebuild(ctx, "startup")
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("initial snapshot build failed", "error", err, "retry_in", backoff)
		if !sleepWithContext(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}

	var tick <-chan time.Time
	if r.opts.Interval > 0 {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case trig := <-r.triggers:
			r.refresh(ctx, trig)
		case <-tick:
			r.refresh(ctx, trigger{reason: "interval"})
		}
	}
}

// TryRefresh schedules a manual rebuild. Returns false when the rate limit
// has no room, leaving the caller to report backpressure.
func (r *Refresher) TryRefresh() bool {
	if !r.limiter.Allow() {
		return false
	}
	select {
	case r.triggers <- trigger{reason: "manual", reserved: true}:
	default:
	}
	return true
}

// Ingest buffers one streamed post for the next rebuild and schedules it.
// The commit callback runs after the post is part of a served snapshot; pass
// nil when there is nothing to commit. Posts already buffered are dropped by
// id, their commit still honored.
func (r *Refresher) Ingest(rec domain.SocialRecord, commit func(context.Context) error) {
	r.mu.Lock()
	if !r.buffered[rec.PostID] {
		r.buffered[rec.PostID] = true
		r.streamed = append(r.streamed, rec)
	}
	if commit != nil {
		r.commits = append(r.commits, commit)
	}
	r.mu.Unlock()

	select {
	case r.triggers <- trigger{reason: "ingest"}:
	default:
	}
}

// refresh spaces the rebuild per the rate limit, then runs it. Build errors
// are logged, not returned: the loop must outlive a bad data drop.
func (r *Refresher) refresh(ctx context.Context, trig trigger) {
	if !trig.reserved {
		res := r.limiter.Reserve()
		if d := res.Delay(); d > 0 {
			if !sleepWithContext(ctx, d) {
				res.Cancel()
				return
			}
		}
	}

	if err := r.rebuild(ctx, trig.reason); err != nil && ctx.Err() == nil {
		r.logger.Error("snapshot rebuild failed", "error", err, "trigger", trig.reason)
	}
}

// rebuild runs one build and swaps the result into service. Streamed offsets
// commit only after the swap: a crash before that point replays the messages
// instead of dropping them.
func (r *Refresher) rebuild(ctx context.Context, reason string) error {
	streamed, commits, claimed := r.pending()

	snap, err := r.builder.Build(ctx, streamed)
	if err != nil {
		return err
	}

	r.sink.Swap(snap)
	r.logger.Info("snapshot swapped", "id", snap.ID, "trigger", reason)

	if r.opts.Archiver != nil {
		if err := r.opts.Archiver.Save(ctx, snap); err != nil {
			r.logger.Warn("archive snapshot failed", "error", err, "id", snap.ID)
		}
	}
	if r.opts.Publisher != nil {
		if err := r.opts.Publisher.PublishMetrics(ctx, snap); err != nil {
			r.logger.Warn("publish metrics failed", "error", err, "id", snap.ID)
		}
	}

	for _, commit := range commits {
		if err := commit(ctx); err != nil {
			r.logger.Warn("commit streamed offset failed", "error", err)
		}
	}
	r.dropCommits(claimed)
	return nil
}

// pending copies the streamed buffer and claims the commit callbacks queued
// so far. Records stay buffered so every later snapshot includes them; the
// claimed callbacks are dropped once run.
func (r *Refresher) pending() ([]domain.SocialRecord, []func(context.Context) error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]domain.SocialRecord, len(r.streamed))
	copy(records, r.streamed)
	n := len(r.commits)
	return records, r.commits[:n:n], n
}

func (r *Refresher) dropCommits(n int) {
	r.mu.Lock()
	r.commits = r.commits[n:]
	r.mu.Unlock()
}

func nextBackoff(current, maxDelay time.Duration) time.Duration {
	next := current * 2
	if next > maxDelay {
		return maxDelay
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
