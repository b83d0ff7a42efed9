package models

// AnalyticsSnapshot is one immutable fetch of data/trends.json. A new load
// replaces the previous snapshot entirely.
type AnalyticsSnapshot struct {
	TotalVideos   int                     `json:"totalVideos"`
	Summary       Summary                 `json:"summary"`
	KeywordTrends []KeywordTrend          `json:"keywordTrends"`
	TopVideos     []VideoRecord           `json:"topVideos"`
	TopEngagement []VideoRecord           `json:"topEngagement"`
	LastUpdated   string                  `json:"lastUpdated"`
	PlatformStats map[string]PlatformStat `json:"platformStats,omitempty"`
}

// Summary holds the producer-computed aggregates.
type Summary struct {
	TotalViews    int64   `json:"totalViews"`
	AvgEngagement float64 `json:"avgEngagement"`
	YouTubeVideos int     `json:"youtubeVideos"`
	VimeoVideos   int     `json:"vimeoVideos"`
}

// KeywordTrend is a collection keyword and how many videos it surfaced.
type KeywordTrend struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// PlatformStat is the per-platform breakdown written by the collector.
type PlatformStat struct {
	Count      int   `json:"count"`
	TotalViews int64 `json:"totalViews"`
}

// Normalize replaces absent sequences with empty ones so consumers can range
// over them without nil checks.
func (s *AnalyticsSnapshot) Normalize() {
	if s.KeywordTrends == nil {
		s.KeywordTrends = []KeywordTrend{}
	}
	if s.TopVideos == nil {
		s.TopVideos = []VideoRecord{}
	}
	if s.TopEngagement == nil {
		s.TopEngagement = []VideoRecord{}
	}
}
