package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
	"github.com/couchcryptid/climate-trends-analytics/internal/pipeline"
)

// --- mocks ---

type mockBuilder struct {
	mu       sync.Mutex
	results  []error // consumed front to back; nil entries and exhaustion mean success
	calls    int
	streamed [][]domain.SocialRecord
}

func (m *mockBuilder) Build(_ context.Context, streamed []domain.SocialRecord) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.streamed = append(m.streamed, streamed)

	if len(m.results) > 0 {
		err := m.results[0]
		m.results = m.results[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.Snapshot{ID: fmt.Sprintf("snap-%d", m.calls)}, nil
}

func (m *mockBuilder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockBuilder) lastStreamed() []domain.SocialRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streamed) == 0 {
		return nil
	}
	return m.streamed[len(m.streamed)-1]
}

type mockSink struct {
	ch chan *domain.Snapshot
}

func newMockSink() *mockSink {
	return &mockSink{ch: make(chan *domain.Snapshot, 16)}
}

func (m *mockSink) Swap(snap *domain.Snapshot) {
	m.ch <- snap
}

func (m *mockSink) wait(t *testing.T) *domain.Snapshot {
	t.Helper()
	select {
	case snap := <-m.ch:
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot swap")
		return nil
	}
}

func (m *mockSink) assertNoSwap(t *testing.T) {
	t.Helper()
	select {
	case snap := <-m.ch:
		t.Fatalf("unexpected snapshot swap: %s", snap.ID)
	default:
	}
}

type mockArchiver struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (m *mockArchiver) Save(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, snap.ID)
	return m.err
}

func (m *mockArchiver) saved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

type mockPublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (m *mockPublisher) PublishMetrics(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, snap.ID)
	return m.err
}

func (m *mockPublisher) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// --- helpers ---

func newRefresher(b pipeline.SnapshotBuilder, sink pipeline.SnapshotSink, opts pipeline.RefresherOptions) *pipeline.Refresher {
	return pipeline.NewRefresher(b, sink, opts, testLogger(), observability.NewMetricsForTesting())
}

func startRefresher(t *testing.T, r *pipeline.Refresher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
}

// --- tests ---

func TestRefresherInitialBuild(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)

	snap := sink.wait(t)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, 1, b.callCount())
	assert.Empty(t, b.lastStreamed())
}

func TestRefresherInitialBuildRetriesWithBackoff(t *testing.T) {
	b := &mockBuilder{results: []error{errors.New("no data"), errors.New("still no data"), nil}}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)

	snap := sink.wait(t)
	assert.Equal(t, "snap-3", snap.ID)
	assert.Equal(t, 3, b.callCount())
}

func TestRefresherManualTrigger(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)
	sink.wait(t)

	assert.True(t, r.TryRefresh())

	snap := sink.wait(t)
	assert.Equal(t, "snap-2", snap.ID)
}

func TestRefresherManualTriggerRateLimited(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{RateLimit: time.Hour})

	startRefresher(t, r)
	sink.wait(t)

	assert.True(t, r.TryRefresh())
	assert.False(t, r.TryRefresh())
}

func TestRefresherIngest(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)
	sink.wait(t)

	committed := make(chan struct{}, 1)
	rec := domain.SocialRecord{
		PostID:          "s1",
		Timestamp:       time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		RawRegion:       "NYC",
		EngagementCount: 40,
	}
	r.Ingest(rec, func(context.Context) error {
		committed <- struct{}{}
		return nil
	})

	sink.wait(t)
	require.Len(t, b.lastStreamed(), 1)
	assert.Equal(t, "s1", b.lastStreamed()[0].PostID)

	select {
	case <-committed:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for offset commit")
	}
}

func TestRefresherIngestDeduplicatesBuffer(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)
	sink.wait(t)

	rec := domain.SocialRecord{PostID: "s1"}
	r.Ingest(rec, nil)
	sink.wait(t)

	r.Ingest(rec, nil)
	sink.wait(t)

	assert.Len(t, b.lastStreamed(), 1)
}

func TestRefresherBuildFailureKeepsPreviousSnapshot(t *testing.T) {
	b := &mockBuilder{results: []error{nil, errors.New("bad data drop")}}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{})

	startRefresher(t, r)
	sink.wait(t)

	assert.True(t, r.TryRefresh())
	require.Eventually(t, func() bool { return b.callCount() >= 2 }, 3*time.Second, 10*time.Millisecond)
	sink.assertNoSwap(t)

	assert.True(t, r.TryRefresh())
	snap := sink.wait(t)
	assert.Equal(t, "snap-3", snap.ID)
}

func TestRefresherWatchRebuilds(t *testing.T) {
	dir := t.TempDir()
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{
		Watch:    true,
		WatchDir: dir,
		Debounce: 50 * time.Millisecond,
	})

	startRefresher(t, r)
	sink.wait(t)

	// Give the watcher a moment to register before touching the directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "social_new.csv", "post_id,timestamp,region,hashtags,sentiment,engagement\n")

	snap := sink.wait(t)
	assert.Equal(t, "snap-2", snap.ID)
}

func TestRefresherIntervalRebuilds(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	r := newRefresher(b, sink, pipeline.RefresherOptions{Interval: 100 * time.Millisecond})

	startRefresher(t, r)
	sink.wait(t)

	snap := sink.wait(t)
	assert.Equal(t, "snap-2", snap.ID)
}

func TestRefresherArchivesAndPublishes(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	arch := &mockArchiver{}
	pub := &mockPublisher{}
	r := newRefresher(b, sink, pipeline.RefresherOptions{Archiver: arch, Publisher: pub})

	startRefresher(t, r)
	sink.wait(t)

	require.Eventually(t, func() bool { return len(arch.saved()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-1"}, arch.saved())
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"snap-1"}, pub.published())
}

func TestRefresherHookFailuresDoNotBlockCommits(t *testing.T) {
	b := &mockBuilder{}
	sink := newMockSink()
	arch := &mockArchiver{err: errors.New("disk full")}
	pub := &mockPublisher{err: errors.New("broker down")}
	r := newRefresher(b, sink, pipeline.RefresherOptions{Archiver: arch, Publisher: pub})

	startRefresher(t, r)
	sink.wait(t)

	committed := make(chan struct{}, 1)
	r.Ingest(domain.SocialRecord{PostID: "s1"}, func(context.Context) error {
		committed <- struct{}{}
		return nil
	})

	sink.wait(t)
	select {
	case <-committed:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for offset commit")
	}
}
