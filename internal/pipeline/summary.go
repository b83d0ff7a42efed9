package pipeline

import (
	"time"

	"motion-trends/internal/models"
)

// PlatformSplit feeds the platform distribution chart. The snapshot only
// counts YouTube explicitly; everything else is attributed to Other.
type PlatformSplit struct {
	YouTube int            `json:"youtube"`
	Other   int            `json:"other"`
	Counts  map[string]int `json:"counts"`
}

// SummaryView is the data behind the summary cards.
type SummaryView struct {
	TotalVideos   int                  `json:"totalVideos"`
	TotalViews    string               `json:"totalViews"`
	TotalViewsRaw int64                `json:"totalViewsRaw"`
	AvgEngagement string               `json:"avgEngagement"`
	TopKeyword    *models.KeywordTrend `json:"topKeyword"`
	LastUpdated   Age                  `json:"lastUpdated"`
	Platforms     PlatformSplit        `json:"platforms"`
}

// DeriveSummary computes the summary cards. TopKeyword is nil when the
// snapshot has no keyword trends.
func DeriveSummary(snapshot *models.AnalyticsSnapshot, now time.Time, v Variant) SummaryView {
	if snapshot == nil {
		return SummaryView{Platforms: PlatformSplit{Counts: map[string]int{}}}
	}

	view := SummaryView{
		TotalVideos:   snapshot.TotalVideos,
		TotalViews:    FormatNumber(snapshot.Summary.TotalViews),
		TotalViewsRaw: snapshot.Summary.TotalViews,
		AvgEngagement: FormatDecimal(snapshot.Summary.AvgEngagement),
		LastUpdated:   RelativeAge(models.ParseTimestamp(snapshot.LastUpdated).Time, now, v),
		Platforms:     SplitPlatforms(snapshot),
	}

	if len(snapshot.KeywordTrends) > 0 {
		top := snapshot.KeywordTrends[0]
		view.TopKeyword = &top
	}

	return view
}

// SplitPlatforms assumes exactly two platforms: other = total - youtube.
func SplitPlatforms(snapshot *models.AnalyticsSnapshot) PlatformSplit {
	youtube := snapshot.Summary.YouTubeVideos
	other := snapshot.TotalVideos - youtube
	return PlatformSplit{
		YouTube: youtube,
		Other:   other,
		Counts: map[string]int{
			string(models.PlatformYouTube): youtube,
			"other":                        other,
		},
	}
}
