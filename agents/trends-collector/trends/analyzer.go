// Package trends turns collected videos into an analytics snapshot.
package trends

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"time"

	"motion-trends/internal/models"
)

// ErrNoVideos is returned when there is nothing to analyze.
var ErrNoVideos = errors.New("no videos to analyze")

// Options sizes the ranked lists of a snapshot.
type Options struct {
	TopVideos     int
	TopEngagement int
	TopKeywords   int
}

func DefaultOptions() Options {
	return Options{TopVideos: 20, TopEngagement: 10, TopKeywords: 10}
}

// EngagementScore weighs comments double: ((likes + 2*comments) / views) * 1000,
// rounded to two decimals. Videos without views score 0.
func EngagementScore(v models.VideoRecord) float64 {
	if v.ViewCount == 0 {
		return 0
	}
	return round2(float64(v.LikeCount+2*v.CommentCount) / float64(v.ViewCount) * 1000)
}

// BuildSnapshot scores the videos and assembles the snapshot. The input is
// not modified.
func BuildSnapshot(videos []models.VideoRecord, now time.Time, opts Options) (*models.AnalyticsSnapshot, error) {
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}

	scored := make([]models.VideoRecord, len(videos))
	var engagementSum float64
	for i, v := range videos {
		v.EngagementScore = EngagementScore(v)
		engagementSum += v.EngagementScore
		scored[i] = v
	}

	stats := map[string]models.PlatformStat{
		string(models.PlatformYouTube): {},
		string(models.PlatformVimeo):   {},
	}
	var totalViews int64
	for _, v := range scored {
		s := stats[string(v.Platform)]
		s.Count++
		s.TotalViews += v.ViewCount
		stats[string(v.Platform)] = s
		totalViews += v.ViewCount
	}

	byViews := slices.Clone(scored)
	SortByViews(byViews)

	byEngagement := slices.Clone(scored)
	slices.SortStableFunc(byEngagement, func(a, b models.VideoRecord) int {
		return cmp.Compare(b.EngagementScore, a.EngagementScore)
	})

	snapshot := &models.AnalyticsSnapshot{
		TotalVideos:   len(scored),
		KeywordTrends: KeywordTrends(scored, opts.TopKeywords),
		TopVideos:     truncate(byViews, opts.TopVideos),
		TopEngagement: truncate(byEngagement, opts.TopEngagement),
		PlatformStats: stats,
		LastUpdated:   now.Format(time.RFC3339),
		Summary: models.Summary{
			TotalViews:    totalViews,
			AvgEngagement: round2(engagementSum / float64(len(scored))),
			YouTubeVideos: stats[string(models.PlatformYouTube)].Count,
			VimeoVideos:   stats[string(models.PlatformVimeo)].Count,
		},
	}
	return snapshot, nil
}

// KeywordTrends counts videos per collection keyword and returns the n most
// common. Equal counts keep the order in which the keyword first appeared.
func KeywordTrends(videos []models.VideoRecord, n int) []models.KeywordTrend {
	counts := make(map[string]int)
	var order []string
	for _, v := range videos {
		if _, seen := counts[v.Keyword]; !seen {
			order = append(order, v.Keyword)
		}
		counts[v.Keyword]++
	}

	trends := make([]models.KeywordTrend, len(order))
	for i, kw := range order {
		trends[i] = models.KeywordTrend{Keyword: kw, Count: counts[kw]}
	}
	slices.SortStableFunc(trends, func(a, b models.KeywordTrend) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return truncate(trends, n)
}

// SortByViews orders videos by view count, highest first, keeping the
// original order for ties.
func SortByViews(videos []models.VideoRecord) {
	slices.SortStableFunc(videos, func(a, b models.VideoRecord) int {
		return cmp.Compare(b.ViewCount, a.ViewCount)
	})
}

// Dedupe drops records whose URL was already seen, keeping the first.
func Dedupe(videos []models.VideoRecord) []models.VideoRecord {
	seen := make(map[string]struct{}, len(videos))
	out := make([]models.VideoRecord, 0, len(videos))
	for _, v := range videos {
		if _, ok := seen[v.URL]; ok {
			continue
		}
		seen[v.URL] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
