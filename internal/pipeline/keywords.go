package pipeline

import (
	"strings"

	"motion-trends/internal/models"
)

// KeywordChartSize is how many keywords the bar chart shows.
const KeywordChartSize = 8

// DeriveKeywordList applies the keyword search box. An empty query returns
// a copy of the producer's list; otherwise keywords containing the query
// (case-insensitive) are kept in their original order.
func DeriveKeywordList(snapshot *models.AnalyticsSnapshot, query string) []models.KeywordTrend {
	if snapshot == nil {
		return []models.KeywordTrend{}
	}
	if query == "" {
		return head(snapshot.KeywordTrends, len(snapshot.KeywordTrends))
	}

	query = strings.ToLower(query)
	matches := make([]models.KeywordTrend, 0, len(snapshot.KeywordTrends))
	for _, k := range snapshot.KeywordTrends {
		if strings.Contains(strings.ToLower(k.Keyword), query) {
			matches = append(matches, k)
		}
	}
	return matches
}

// DeriveKeywordChart returns the first n keywords, already rank-ordered.
func DeriveKeywordChart(snapshot *models.AnalyticsSnapshot, n int) []models.KeywordTrend {
	if snapshot == nil {
		return []models.KeywordTrend{}
	}
	return head(snapshot.KeywordTrends, n)
}
