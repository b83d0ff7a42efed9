package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform identifies the video host a record was collected from.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformVimeo   Platform = "vimeo"
)

// VideoRecord is a single video as emitted by the trends collector.
// URL is unique per record and serves as its key.
type VideoRecord struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Channel         string    `json:"channel"`
	Thumbnail       string    `json:"thumbnail"`
	Platform        Platform  `json:"platform"`
	ViewCount       int64     `json:"viewCount"`
	LikeCount       int64     `json:"likeCount"`
	CommentCount    int64     `json:"commentCount"`
	EngagementScore float64   `json:"engagementScore"`
	PublishedAt     Timestamp `json:"publishedAt"`

	// Producer-side fields carried through untouched.
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    any    `json:"duration,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	CollectedAt string `json:"collectedAt,omitempty"`
}

// timestampLayouts are tried in order. The collector writes naive local
// timestamps for lastUpdated while the platforms return zoned RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// dateOnlyLayout is read as UTC midnight, unlike zone-less date-times.
const dateOnlyLayout = "2006-01-02"

// Timestamp keeps the producer's original string next to its parsed value so
// re-encoding a snapshot is lossless. Unparsable input yields a zero Time.
type Timestamp struct {
	Raw  string
	Time time.Time
}

// NewTimestamp builds a Timestamp from a time value using RFC 3339.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Raw: t.Format(time.RFC3339), Time: t}
}

// ParseTimestamp parses an ISO 8601 string. Zone-less date-times are read in
// the local time zone; a bare date is UTC midnight.
func ParseTimestamp(s string) Timestamp {
	ts := Timestamp{Raw: s}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			ts.Time = t
			return ts
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		ts.Time = t
	}
	return ts
}

// IsZero reports whether the timestamp could not be parsed or was absent.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Raw)
}
