package trendscollector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motion-trends/internal/models"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
	"motion-trends/shared/scheduler"
)

type fakeYouTube struct {
	mu       sync.Mutex
	failAll  bool
	failOn   map[string]bool
	keywords []string
	after    time.Time
}

func (f *fakeYouTube) SearchVideos(_ context.Context, keyword string, maxResults int64, publishedAfter time.Time) ([]models.VideoRecord, error) {
	f.mu.Lock()
	f.keywords = append(f.keywords, keyword)
	f.after = publishedAfter
	f.mu.Unlock()

	if f.failAll || f.failOn[keyword] {
		return nil, errors.New("quotaExceeded")
	}
	var out []models.VideoRecord
	for i := int64(0); i < maxResults; i++ {
		out = append(out, models.VideoRecord{
			URL:       fmt.Sprintf("https://www.youtube.com/watch?v=%s-%d", keyword, i),
			Title:     fmt.Sprintf("%s #%d", keyword, i),
			Platform:  models.PlatformYouTube,
			Keyword:   keyword,
			ViewCount: 1000 * (i + 1),
			LikeCount: 10,
		})
	}
	return out, nil
}

func (f *fakeYouTube) RefreshToken() error { return nil }

type fakeVimeo struct {
	err error
}

func (f *fakeVimeo) SearchVideos(_ context.Context, keyword string, perPage int) ([]models.VideoRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	// the same video surfaces for every keyword
	return []models.VideoRecord{{
		URL:       "https://vimeo.com/42",
		Title:     "shared reel",
		Platform:  models.PlatformVimeo,
		Keyword:   keyword,
		ViewCount: 500,
		LikeCount: 50,
	}}, nil
}

type fakeBriefer struct {
	err error
}

func (f *fakeBriefer) Brief(context.Context, *models.AnalyticsSnapshot) (*models.TrendBrief, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrendBrief{Headline: "Loops are back"}, nil
}

type fakeSender struct {
	reports []*models.DigestReport
	err     error
}

func (f *fakeSender) SendDigest(report *models.DigestReport) error {
	f.reports = append(f.reports, report)
	return f.err
}

type recorder struct {
	successes []string
	partials  []error
}

func (r *recorder) events() *scheduler.AgentEvents {
	return &scheduler.AgentEvents{
		OnSuccess: func(m scheduler.Metrics, _ time.Duration) {
			r.successes = append(r.successes, m.GetSummary())
		},
		OnPartialFailure: func(err error, _ time.Duration) {
			r.partials = append(r.partials, err)
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Collector: config.CollectorConfig{
			YouTube: config.YouTubeConfig{
				Keywords:   []string{"motion design trends", "cinema 4d motion"},
				MaxResults: 3,
				KeepTop:    50,
			},
			Vimeo: config.VimeoConfig{
				Keywords: []string{"motion graphics", "3d animation"},
				PerPage:  10,
				KeepTop:  30,
			},
			OutputFile:       filepath.Join(t.TempDir(), "data", "trends.json"),
			LookbackDays:     30,
			TopVideos:        20,
			TopEngagement:    10,
			TopKeywords:      10,
			ArchiveRetention: 14,
		},
	}
}

func newTestAgent(t *testing.T, yt youtubeSearcher, vm vimeoSearcher) *CollectorAgent {
	t.Helper()
	agent := NewCollectorAgent(testConfig(t), logger.NewNop())
	agent.youtube = yt
	agent.vimeo = vm
	agent.now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, agent.Initialize())
	return agent
}

func readSnapshot(t *testing.T, path string) models.AnalyticsSnapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var s models.AnalyticsSnapshot
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestCollectorAgentName(t *testing.T) {
	assert.Equal(t, "Trends Collector", NewCollectorAgent(&config.Config{}, logger.NewNop()).Name())
}

func TestCollectorMetricsGetSummary(t *testing.T) {
	m := CollectorMetrics{YouTubeVideos: 40, VimeoVideos: 12, Keywords: 10, OutputFile: "data/trends.json", Emailed: true}
	assert.Equal(t, "collected 52 videos (40 YouTube, 12 Vimeo) across 10 keywords, wrote data/trends.json, digest sent", m.GetSummary())
}

func TestInitializeRequiresPlatform(t *testing.T) {
	agent := NewCollectorAgent(testConfig(t), logger.NewNop())
	assert.Error(t, agent.Initialize())
}

func TestRunOnceWritesSnapshot(t *testing.T) {
	yt := &fakeYouTube{}
	agent := newTestAgent(t, yt, &fakeVimeo{})

	var rec recorder
	require.NoError(t, agent.RunOnce(context.Background(), rec.events()))

	require.Len(t, rec.successes, 1)
	assert.Empty(t, rec.partials)
	assert.Equal(t, time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC), yt.after)

	s := readSnapshot(t, agent.config.Collector.OutputFile)
	assert.Equal(t, 7, s.TotalVideos, "six YouTube videos plus one deduplicated Vimeo video")
	assert.Equal(t, 6, s.Summary.YouTubeVideos)
	assert.Equal(t, 1, s.Summary.VimeoVideos)
	assert.Equal(t, "2024-05-10T09:00:00Z", s.LastUpdated)
	assert.Equal(t, int64(3000), s.TopVideos[0].ViewCount)
	assert.Equal(t, models.KeywordTrend{Keyword: "motion design trends", Count: 3}, s.KeywordTrends[0])

	// archived next to the output file
	_, err := os.Stat(filepath.Join(filepath.Dir(agent.config.Collector.OutputFile), "last_snapshot.json"))
	assert.NoError(t, err)
}

func TestRunOnceKeepTop(t *testing.T) {
	agent := newTestAgent(t, &fakeYouTube{}, nil)
	agent.config.Collector.YouTube.KeepTop = 4

	require.NoError(t, agent.RunOnce(context.Background(), nil))

	s := readSnapshot(t, agent.config.Collector.OutputFile)
	assert.Equal(t, 4, s.TotalVideos)
	for _, v := range s.TopVideos {
		assert.GreaterOrEqual(t, v.ViewCount, int64(2000))
	}
}

func TestRunOncePartialFailures(t *testing.T) {
	t.Run("one platform down", func(t *testing.T) {
		agent := newTestAgent(t, &fakeYouTube{failAll: true}, &fakeVimeo{})

		var rec recorder
		require.NoError(t, agent.RunOnce(context.Background(), rec.events()))
		require.Len(t, rec.partials, 1)
		assert.Contains(t, rec.partials[0].Error(), "youtube")
		assert.Len(t, rec.successes, 1)

		s := readSnapshot(t, agent.config.Collector.OutputFile)
		assert.Equal(t, 1, s.TotalVideos)
	})

	t.Run("one keyword down", func(t *testing.T) {
		agent := newTestAgent(t, &fakeYouTube{failOn: map[string]bool{"cinema 4d motion": true}}, nil)

		var rec recorder
		require.NoError(t, agent.RunOnce(context.Background(), rec.events()))
		assert.Empty(t, rec.partials)

		s := readSnapshot(t, agent.config.Collector.OutputFile)
		assert.Equal(t, 3, s.TotalVideos)
	})

	t.Run("brief and email failures", func(t *testing.T) {
		agent := newTestAgent(t, &fakeYouTube{}, nil)
		agent.briefer = &fakeBriefer{err: errors.New("model overloaded")}
		sender := &fakeSender{err: errors.New("smtp timeout")}
		agent.sender = sender

		var rec recorder
		require.NoError(t, agent.RunOnce(context.Background(), rec.events()))
		assert.Len(t, rec.partials, 2)
		require.Len(t, sender.reports, 1)
		assert.Nil(t, sender.reports[0].Brief)
	})
}

func TestRunOnceAllPlatformsFail(t *testing.T) {
	agent := newTestAgent(t, &fakeYouTube{failAll: true}, &fakeVimeo{err: errors.New("401")})

	var rec recorder
	err := agent.RunOnce(context.Background(), rec.events())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all platforms failed")
	assert.Empty(t, rec.successes)

	_, statErr := os.Stat(agent.config.Collector.OutputFile)
	assert.True(t, os.IsNotExist(statErr), "no snapshot is written on failure")
}

func TestRunOnceNoVideos(t *testing.T) {
	agent := newTestAgent(t, &fakeYouTube{}, nil)
	agent.config.Collector.YouTube.MaxResults = 0

	err := agent.RunOnce(context.Background(), nil)
	assert.ErrorContains(t, err, "no videos to analyze")
}

func TestRunOnceSendsDigestWithBrief(t *testing.T) {
	agent := newTestAgent(t, &fakeYouTube{}, &fakeVimeo{})
	agent.briefer = &fakeBriefer{}
	sender := &fakeSender{}
	agent.sender = sender

	var rec recorder
	require.NoError(t, agent.RunOnce(context.Background(), rec.events()))

	require.Len(t, sender.reports, 1)
	report := sender.reports[0]
	require.NotNil(t, report.Brief)
	assert.Equal(t, "Loops are back", report.Brief.Headline)
	assert.Equal(t, 7, report.Snapshot.TotalVideos)
	require.Len(t, rec.successes, 1)
	assert.Contains(t, rec.successes[0], "digest sent")
}
