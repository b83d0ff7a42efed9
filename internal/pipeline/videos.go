package pipeline

import (
	"cmp"
	"slices"

	"motion-trends/internal/models"
)

// DeriveVideoList filters and orders snapshot.TopVideos for the consolidated
// dashboard. The full sequence is returned; truncation to the display limit
// is done by Paginate so "load more" never re-filters or re-sorts.
func DeriveVideoList(snapshot *models.AnalyticsSnapshot, filter models.FilterState) []models.VideoRecord {
	if snapshot == nil {
		return []models.VideoRecord{}
	}

	videos := make([]models.VideoRecord, 0, len(snapshot.TopVideos))
	for _, v := range snapshot.TopVideos {
		if matchesPlatform(v, filter.Platform) {
			videos = append(videos, v)
		}
	}

	videos = applyDateRange(videos, filter.DateRange)
	sortVideos(videos, filter.SortBy)
	return videos
}

func matchesPlatform(v models.VideoRecord, p models.PlatformFilter) bool {
	if p == "" || p == models.PlatformAll {
		return true
	}
	return string(v.Platform) == string(p)
}

// applyDateRange accepts the range but does not filter on it yet; selecting
// today/week/month leaves the list untouched.
// TODO: compare PublishedAt against now once the date filter is enabled in the UI.
func applyDateRange(videos []models.VideoRecord, _ models.DateRange) []models.VideoRecord {
	return videos
}

// sortVideos sorts in place. The sort is stable: ties keep the producer's
// order, which may already encode a secondary ranking. Unknown keys leave the
// order untouched.
func sortVideos(videos []models.VideoRecord, by models.SortBy) {
	var compare func(a, b models.VideoRecord) int

	switch by {
	case models.SortByViews, "":
		compare = func(a, b models.VideoRecord) int {
			return cmp.Compare(b.ViewCount, a.ViewCount)
		}
	case models.SortByEngagement:
		compare = func(a, b models.VideoRecord) int {
			return cmp.Compare(b.EngagementScore, a.EngagementScore)
		}
	case models.SortByRecent:
		compare = func(a, b models.VideoRecord) int {
			return b.PublishedAt.Time.Compare(a.PublishedAt.Time)
		}
	default:
		return
	}

	slices.SortStableFunc(videos, compare)
}

// Page is the slice of a derived list that is actually rendered.
type Page struct {
	Items   []models.VideoRecord `json:"items"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	HasMore bool                 `json:"hasMore"`
}

// Paginate truncates a derived list to the display limit. HasMore drives the
// visibility of the "load more" control.
func Paginate(videos []models.VideoRecord, limit int) Page {
	if limit <= 0 {
		limit = models.DefaultDisplayLimit
	}
	return Page{
		Items:   head(videos, limit),
		Total:   len(videos),
		Limit:   limit,
		HasMore: len(videos) > limit,
	}
}

// TopLists is what the secondary dashboard renders: two independent views
// over the snapshot, each cut to its own size.
type TopLists struct {
	TopVideos     []models.VideoRecord `json:"topVideos"`
	TopEngagement []models.VideoRecord `json:"topEngagement"`
}

// DeriveTopLists truncates topVideos and topEngagement independently. No
// filtering or re-sorting happens; the producer's order is the ranking.
func DeriveTopLists(snapshot *models.AnalyticsSnapshot, videosN, engagementN int) TopLists {
	if snapshot == nil {
		return TopLists{TopVideos: []models.VideoRecord{}, TopEngagement: []models.VideoRecord{}}
	}
	return TopLists{
		TopVideos:     head(snapshot.TopVideos, videosN),
		TopEngagement: head(snapshot.TopEngagement, engagementN),
	}
}

func head[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) < n {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}
