package models

import "time"

// TrendBrief is the short narrative written for a snapshot.
type TrendBrief struct {
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	Highlights    []string `json:"highlights"`
	Opportunities []string `json:"opportunities"`
}

// DigestReport is everything the email digest renders.
type DigestReport struct {
	Date     time.Time
	Snapshot *AnalyticsSnapshot
	// Brief is nil when no Gemini key is configured or generation failed.
	Brief *TrendBrief
}
