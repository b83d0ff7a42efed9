package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
	"motion-trends/shared/scheduler"
	"motion-trends/shared/storage"
)

// fakeFetcher returns queued results in order; the last one repeats.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
	gate    chan struct{}
}

type fetchResult struct {
	snapshot *models.AnalyticsSnapshot
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.snapshot, r.err
}

func (f *fakeFetcher) Source() string { return "fake" }

func snapshotWith(n int) *models.AnalyticsSnapshot {
	return &models.AnalyticsSnapshot{
		TotalVideos:   n,
		Summary:       models.Summary{YouTubeVideos: n},
		KeywordTrends: []models.KeywordTrend{{Keyword: "motion design", Count: n}},
		LastUpdated:   "2024-05-10T09:00:00Z",
	}
}

func newTestAgent(t *testing.T, dash config.DashboardConfig, fetcher *fakeFetcher) *DashboardAgent {
	t.Helper()
	agent := NewDashboardAgent(&config.Config{Dashboard: dash}, logger.NewNop())
	agent.loader = fetcher
	require.NoError(t, agent.Initialize())
	return agent
}

func TestDashboardAgentName(t *testing.T) {
	agent := NewDashboardAgent(&config.Config{}, logger.NewNop())
	assert.Equal(t, "Trends Dashboard", agent.Name())
}

func TestRefreshMetricsGetSummary(t *testing.T) {
	m := RefreshMetrics{Generation: 4, Videos: 25, Keywords: 10, Source: "data/trends.json"}
	assert.Equal(t, "loaded snapshot #4 with 25 videos and 10 keywords from data/trends.json", m.GetSummary())
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	for name, dash := range map[string]config.DashboardConfig{
		"variant": {Variant: "tertiary"},
		"policy":  {OnError: "retry"},
	} {
		t.Run(name, func(t *testing.T) {
			agent := NewDashboardAgent(&config.Config{Dashboard: dash}, logger.NewNop())
			agent.loader = &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(1)}}}
			assert.Error(t, agent.Initialize())
		})
	}
}

func TestRunOnceReplacesSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(1)}, {snapshot: snapshotWith(2)}}}
	agent := newTestAgent(t, config.DashboardConfig{}, fetcher)

	var summaries []string
	events := &scheduler.AgentEvents{
		OnSuccess: func(m scheduler.Metrics, _ time.Duration) { summaries = append(summaries, m.GetSummary()) },
	}

	require.NoError(t, agent.RunOnce(context.Background(), events))
	require.NoError(t, agent.RunOnce(context.Background(), events))

	current, ok := agent.Store().Current()
	require.True(t, ok)
	assert.Equal(t, 2, current.TotalVideos)
	assert.Equal(t, uint64(2), agent.Store().Generation())
	require.Len(t, summaries, 2)
	assert.True(t, strings.HasPrefix(summaries[1], "loaded snapshot #2 with 2 videos"))
}

func TestErrorPolicies(t *testing.T) {
	loadErr := errors.New("connection reset")

	tests := []struct {
		name        string
		dash        config.DashboardConfig
		wantPresent bool
	}{
		{"consolidated keeps stale", config.DashboardConfig{Variant: "consolidated"}, true},
		{"secondary clears", config.DashboardConfig{Variant: "secondary"}, false},
		{"explicit override", config.DashboardConfig{Variant: "secondary", OnError: "keep_stale"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(5)}, {err: loadErr}}}
			agent := newTestAgent(t, tt.dash, fetcher)

			require.NoError(t, agent.RunOnce(context.Background(), nil))
			err := agent.RunOnce(context.Background(), nil)
			require.ErrorIs(t, err, loadErr)

			current, ok := agent.Store().Current()
			assert.Equal(t, tt.wantPresent, ok)
			if ok {
				assert.Equal(t, 5, current.TotalVideos)
			}
			assert.ErrorIs(t, agent.Store().Err(), loadErr)
		})
	}
}

func TestRefreshSharesInFlightFetch(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []fetchResult{{snapshot: snapshotWith(3)}},
		gate:    make(chan struct{}),
	}
	agent := newTestAgent(t, config.DashboardConfig{}, fetcher)

	var wg sync.WaitGroup
	results := make([]RefreshMetrics, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := agent.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}

	// let every caller reach the singleflight group before releasing the fetch
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, m := range results {
		assert.Equal(t, uint64(1), m.Generation)
	}
}

func TestRefreshIgnoresCallerCancellation(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(1)}}}
	agent := newTestAgent(t, config.DashboardConfig{}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Refresh(ctx)
	require.NoError(t, err)
}

func TestInitializeRestoresArchive(t *testing.T) {
	dir := t.TempDir()
	archive, err := storage.NewSnapshotArchive(dir, 0)
	require.NoError(t, err)
	require.NoError(t, archive.Save(snapshotWith(7)))

	fetcher := &fakeFetcher{results: []fetchResult{{err: errors.New("offline")}}}
	agent := newTestAgent(t, config.DashboardConfig{ArchiveDir: dir}, fetcher)

	current, ok := agent.Store().Current()
	require.True(t, ok, "archived snapshot should be served before the first fetch")
	assert.Equal(t, 7, current.TotalVideos)

	// keep_stale leaves the restored snapshot in place
	assert.Error(t, agent.RunOnce(context.Background(), nil))
	_, ok = agent.Store().Current()
	assert.True(t, ok)
}

func TestSuccessfulRefreshIsArchived(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(9)}}}
	agent := newTestAgent(t, config.DashboardConfig{ArchiveDir: dir}, fetcher)

	require.NoError(t, agent.RunOnce(context.Background(), nil))

	archive, err := storage.NewSnapshotArchive(dir, 0)
	require.NoError(t, err)
	entry, err := archive.Load()
	require.NoError(t, err)
	assert.Equal(t, 9, entry.Snapshot.TotalVideos)
}

func TestVariantDefaultsApplied(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{{snapshot: snapshotWith(1)}}}
	agent := newTestAgent(t, config.DashboardConfig{Variant: "secondary"}, fetcher)
	assert.Equal(t, pipeline.VariantSecondary, agent.variant)
	assert.Equal(t, pipeline.ClearOnError, agent.policy)
}
