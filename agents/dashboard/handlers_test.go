package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
	"motion-trends/shared/storage"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func loadTestSnapshot(t *testing.T) *models.AnalyticsSnapshot {
	t.Helper()
	var s models.AnalyticsSnapshot
	require.NoError(t, json.Unmarshal([]byte(snapshotJSON), &s))
	return &s
}

func setupRouter(t *testing.T, variant pipeline.Variant, snapshot *models.AnalyticsSnapshot, refresh func(context.Context) (RefreshMetrics, error)) (*gin.Engine, *storage.SnapshotStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewSnapshotStore()
	if snapshot != nil {
		store.Replace(snapshot)
	}
	if refresh == nil {
		refresh = func(context.Context) (RefreshMetrics, error) { return RefreshMetrics{}, nil }
	}

	api := &API{
		store:         store,
		refresh:       refresh,
		variant:       variant,
		topVideos:     10,
		topEngagement: 10,
		now:           func() time.Time { return testNow },
		log:           logger.NewNop(),
	}
	router := gin.New()
	api.Register(router.Group("/api/v1"))
	return router, store
}

func doRequest(router http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNoSnapshotReturns503(t *testing.T) {
	router, store := setupRouter(t, pipeline.VariantConsolidated, nil, nil)
	store.Clear(errors.New("snapshot source returned status 404"))

	for _, path := range []string{"/summary", "/videos", "/keywords", "/keywords/chart", "/top", "/snapshot"} {
		t.Run(path, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/v1"+path, nil)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)

			body := decode[errorResponse](t, w)
			assert.Equal(t, "no snapshot loaded", body.Error)
			assert.Contains(t, body.Detail, "404")
		})
	}
}

func TestSummaryHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantSecondary, loadTestSnapshot(t), nil)

	t.Run("english", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/summary", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(3), body["totalVideos"])
		assert.Equal(t, "2.3M", body["totalViews"])
		assert.Equal(t, "4.3", body["avgEngagement"])
		assert.Equal(t, "3h ago", body["lastUpdatedText"])
		assert.Equal(t, "14 mentions", body["topKeywordMentions"])
		assert.Equal(t, "en", body["locale"])

		platforms := body["platforms"].(map[string]any)
		assert.Equal(t, float64(2), platforms["youtube"])
		assert.Equal(t, float64(1), platforms["other"])
	})

	t.Run("korean from header", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/summary", map[string]string{"Accept-Language": "ko-KR,ko;q=0.9"})
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "3시간 전", body["lastUpdatedText"])
		assert.Equal(t, "14 회 언급", body["topKeywordMentions"])
		assert.Equal(t, "ko", body["locale"])
	})
}

func TestVideosHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantConsolidated, loadTestSnapshot(t), nil)

	titles := func(items []videoItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Title
		}
		return out
	}

	tests := []struct {
		name    string
		query   string
		titles  []string
		hasMore bool
		total   int
	}{
		{"defaults sort by views", "", []string{"Alpha", "Bravo", "Charlie"}, false, 3},
		{"engagement", "?sortBy=engagement", []string{"Bravo", "Alpha", "Charlie"}, false, 3},
		{"recent", "?sortBy=recent", []string{"Charlie", "Bravo", "Alpha"}, false, 3},
		{"platform", "?platform=youtube", []string{"Alpha", "Charlie"}, false, 2},
		{"date range accepted", "?dateRange=today", []string{"Alpha", "Bravo", "Charlie"}, false, 3},
		{"limit", "?limit=2", []string{"Alpha", "Bravo"}, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/v1/videos"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			body := decode[videosResponse](t, w)
			assert.Equal(t, tt.titles, titles(body.Items))
			assert.Equal(t, tt.hasMore, body.HasMore)
			assert.Equal(t, tt.total, body.Total)
			for i, it := range body.Items {
				assert.Equal(t, i+1, it.Rank)
			}
		})
	}

	t.Run("decorated fields", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/videos", nil)
		body := decode[videosResponse](t, w)
		first := body.Items[0]
		assert.Equal(t, "2.0M", first.ViewsText)
		assert.Equal(t, "50.0K", first.LikesText)
		assert.Equal(t, "1.0K", first.CommentsText)
		assert.Equal(t, "26.0", first.EngagementText)
		assert.Equal(t, "2d ago", first.PublishedText)
		assert.Equal(t, models.DefaultDisplayLimit, body.Limit)
		assert.Equal(t, models.DefaultFilterState(), body.Filter)
	})

	t.Run("page grows the limit", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/videos?sortBy=recent&page=3", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[videosResponse](t, w)
		assert.Equal(t, 3*models.DefaultDisplayLimit, body.Limit)
		assert.Equal(t, models.SortByRecent, body.Filter.SortBy)
		assert.False(t, body.HasMore)

		w = doRequest(router, http.MethodGet, "/api/v1/videos?page=3&limit=1", nil)
		body = decode[videosResponse](t, w)
		assert.Equal(t, 1, body.Limit)
		assert.True(t, body.HasMore)
	})

	t.Run("invalid filters", func(t *testing.T) {
		for _, q := range []string{"?sortBy=likes", "?platform=tiktok", "?dateRange=year", "?limit=0", "?limit=abc", "?page=0", "?page=1001"} {
			w := doRequest(router, http.MethodGet, "/api/v1/videos"+q, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})
}

func TestKeywordsHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantConsolidated, loadTestSnapshot(t), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/keywords?q=ANI", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[keywordsResponse](t, w)
	require.Len(t, body.Items, 1)
	assert.Equal(t, keywordItem{Rank: 1, Keyword: "3d animation", Count: 14, Label: "14 mentions"}, body.Items[0])

	w = doRequest(router, http.MethodGet, "/api/v1/keywords", nil)
	body = decode[keywordsResponse](t, w)
	assert.Len(t, body.Items, 3)
	assert.Equal(t, 3, body.Items[2].Rank)

	w = doRequest(router, http.MethodGet, "/api/v1/keywords?q=xyz", nil)
	body = decode[keywordsResponse](t, w)
	assert.NotNil(t, body.Items)
	assert.Empty(t, body.Items)
}

func TestKeywordChartHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantConsolidated, loadTestSnapshot(t), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/keywords/chart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[chartResponse](t, w)
	assert.Equal(t, []string{"3d animation", "after effects", "creative coding"}, body.Labels)
	assert.Equal(t, []int{14, 9, 2}, body.Data)
}

func TestTopHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantSecondary, loadTestSnapshot(t), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/top", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[topResponse](t, w)
	assert.Len(t, body.TopVideos, 3)
	require.Len(t, body.TopEngagement, 1)
	assert.Equal(t, "Bravo", body.TopEngagement[0].Title)
	assert.Equal(t, 1, body.TopEngagement[0].Rank)
}

func TestSnapshotHandler(t *testing.T) {
	router, _ := setupRouter(t, pipeline.VariantConsolidated, loadTestSnapshot(t), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[models.AnalyticsSnapshot](t, w)
	assert.Equal(t, 3, body.TotalVideos)
	assert.Equal(t, "2024-05-09T12:00:00+00:00", body.TopVideos[1].PublishedAt.Raw)
}

func TestRefreshHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, _ := setupRouter(t, pipeline.VariantConsolidated, nil, func(context.Context) (RefreshMetrics, error) {
			return RefreshMetrics{Generation: 2, Videos: 25}, nil
		})
		w := doRequest(router, http.MethodPost, "/api/v1/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint64(2), decode[RefreshMetrics](t, w).Generation)
	})

	t.Run("failure", func(t *testing.T) {
		router, _ := setupRouter(t, pipeline.VariantConsolidated, nil, func(context.Context) (RefreshMetrics, error) {
			return RefreshMetrics{}, errors.New("upstream timeout")
		})
		w := doRequest(router, http.MethodPost, "/api/v1/refresh", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "upstream timeout"))
	})
}

func TestRegisterRoutesWithCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fetcher := &fakeFetcher{results: []fetchResult{{snapshot: loadTestSnapshot(t)}}}
	agent := newTestAgent(t, config.DashboardConfig{AllowedOrigins: []string{"https://trends.example.com"}}, fetcher)
	require.NoError(t, agent.RunOnce(context.Background(), nil))

	router := gin.New()
	agent.RegisterRoutes(router)

	w := doRequest(router, http.MethodGet, "/api/v1/summary", map[string]string{"Origin": "https://trends.example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://trends.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(router, http.MethodGet, "/api/v1/summary", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodOptions, "/api/v1/videos", map[string]string{
		"Origin":                        "https://trends.example.com",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
