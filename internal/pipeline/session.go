package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"motion-trends/internal/models"
)

// ErrInvalidFilter is returned for control values the dashboard does not offer.
var ErrInvalidFilter = errors.New("invalid filter value")

// FilterSession owns the controls of one dashboard view. Changing the sort,
// platform or date range starts a new filter session and resets the display
// limit; "load more" only ever grows it. The videos endpoint replays each
// request's query onto a fresh session.
type FilterSession struct {
	state models.FilterState
}

func NewFilterSession() *FilterSession {
	return &FilterSession{state: models.DefaultFilterState()}
}

// State returns a copy of the current controls.
func (s *FilterSession) State() models.FilterState {
	return s.state
}

func (s *FilterSession) SetSortBy(v models.SortBy) {
	if v != s.state.SortBy {
		s.state.SortBy = v
		s.resetLimit()
	}
}

func (s *FilterSession) SetPlatform(p models.PlatformFilter) {
	if p != s.state.Platform {
		s.state.Platform = p
		s.resetLimit()
	}
}

func (s *FilterSession) SetDateRange(r models.DateRange) {
	if r != s.state.DateRange {
		s.state.DateRange = r
		s.resetLimit()
	}
}

// SetSearchQuery only affects the keyword list, so pagination is untouched.
func (s *FilterSession) SetSearchQuery(q string) {
	s.state.SearchQuery = q
}

// LoadMore grows the display limit by one page.
func (s *FilterSession) LoadMore() {
	s.state.DisplayLimit += models.DefaultDisplayLimit
}

// Reset restores sort, platform and date range to their defaults. The search
// box keeps its text.
func (s *FilterSession) Reset() {
	def := models.DefaultFilterState()
	s.state.SortBy = def.SortBy
	s.state.Platform = def.Platform
	s.state.DateRange = def.DateRange
	s.resetLimit()
}

func (s *FilterSession) resetLimit() {
	s.state.DisplayLimit = models.DefaultDisplayLimit
}

// ParseSortBy validates a sort key; empty means the default.
func ParseSortBy(s string) (models.SortBy, error) {
	switch v := models.SortBy(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return models.SortByViews, nil
	case models.SortByViews, models.SortByEngagement, models.SortByRecent:
		return v, nil
	}
	return "", fmt.Errorf("%w: sortBy=%q", ErrInvalidFilter, s)
}

// ParsePlatform validates a platform filter; empty means all.
func ParsePlatform(s string) (models.PlatformFilter, error) {
	switch v := models.PlatformFilter(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return models.PlatformAll, nil
	case models.PlatformAll, models.PlatformFilterYouTube, models.PlatformFilterVimeo:
		return v, nil
	}
	return "", fmt.Errorf("%w: platform=%q", ErrInvalidFilter, s)
}

// ParseDateRange validates a date range; empty means all.
func ParseDateRange(s string) (models.DateRange, error) {
	switch v := models.DateRange(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return models.DateRangeAll, nil
	case models.DateRangeAll, models.DateRangeToday, models.DateRangeWeek, models.DateRangeMonth:
		return v, nil
	}
	return "", fmt.Errorf("%w: dateRange=%q", ErrInvalidFilter, s)
}
