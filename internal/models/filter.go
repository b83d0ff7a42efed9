package models

// SortBy selects the ordering key of the derived video list.
type SortBy string

const (
	SortByViews      SortBy = "views"
	SortByEngagement SortBy = "engagement"
	SortByRecent     SortBy = "recent"
)

// PlatformFilter narrows the video list to one platform, or none.
type PlatformFilter string

const (
	PlatformAll           PlatformFilter = "all"
	PlatformFilterYouTube PlatformFilter = PlatformFilter(PlatformYouTube)
	PlatformFilterVimeo   PlatformFilter = PlatformFilter(PlatformVimeo)
)

// DateRange is accepted from the UI but currently has no filtering effect.
type DateRange string

const (
	DateRangeAll   DateRange = "all"
	DateRangeToday DateRange = "today"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
)

// DefaultDisplayLimit is both the initial page size and the "load more" step.
const DefaultDisplayLimit = 12

// FilterState is the ephemeral set of dashboard controls. It is never persisted.
type FilterState struct {
	SortBy       SortBy         `json:"sortBy"`
	Platform     PlatformFilter `json:"platform"`
	DateRange    DateRange      `json:"dateRange"`
	SearchQuery  string         `json:"searchQuery"`
	DisplayLimit int            `json:"displayLimit"`
}

// DefaultFilterState returns the controls as they appear on first load.
func DefaultFilterState() FilterState {
	return FilterState{
		SortBy:       SortByViews,
		Platform:     PlatformAll,
		DateRange:    DateRangeAll,
		DisplayLimit: DefaultDisplayLimit,
	}
}
