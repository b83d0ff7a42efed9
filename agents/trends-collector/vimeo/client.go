package vimeo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"motion-trends/internal/models"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
)

// Client searches Creative Commons videos on the Vimeo API.
type Client struct {
	baseURL     string
	accessToken string
	maxAge      time.Duration
	httpClient  *http.Client
	log         logger.Logger
	now         func() time.Time
}

// NewClient builds a client that keeps videos created within maxAge.
func NewClient(cfg *config.VimeoConfig, maxAge time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		maxAge:      maxAge,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
		now:         time.Now,
	}
}

type searchResponse struct {
	Data []video `json:"data"`
}

type video struct {
	URI         string    `json:"uri"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Duration    int       `json:"duration"`
	CreatedTime string    `json:"created_time"`
	Pictures    *pictures `json:"pictures"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
	Stats struct {
		Plays *int64 `json:"plays"`
	} `json:"stats"`
	Metadata struct {
		Connections struct {
			Likes    connection `json:"likes"`
			Comments connection `json:"comments"`
		} `json:"connections"`
	} `json:"metadata"`
}

type pictures struct {
	Sizes []struct {
		Width int    `json:"width"`
		Link  string `json:"link"`
	} `json:"sizes"`
}

type connection struct {
	Total int64 `json:"total"`
}

// SearchVideos returns up to perPage of the most liked videos for a keyword,
// dropping anything created before the lookback window.
func (c *Client) SearchVideos(ctx context.Context, keyword string, perPage int) ([]models.VideoRecord, error) {
	params := url.Values{}
	params.Set("query", keyword)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("sort", "likes")
	params.Set("direction", "desc")
	params.Set("filter", "CC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+c.accessToken)
	req.Header.Set("Accept", "application/vnd.vimeo.*+json;version=3.4")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("vimeo search %q returned status %d: %s", keyword, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode vimeo response: %w", err)
	}

	now := c.now()
	collectedAt := now.Format(time.RFC3339)
	records := make([]models.VideoRecord, 0, len(result.Data))
	var stale int

	for _, item := range result.Data {
		created := models.ParseTimestamp(item.CreatedTime)
		if created.IsZero() || now.Sub(created.Time) > c.maxAge {
			stale++
			continue
		}

		record := models.VideoRecord{
			ID:           item.URI[strings.LastIndex(item.URI, "/")+1:],
			URL:          item.Link,
			Title:        item.Name,
			Description:  item.Description,
			Channel:      item.User.Name,
			Thumbnail:    largestPicture(item.Pictures),
			Platform:     models.PlatformVimeo,
			LikeCount:    item.Metadata.Connections.Likes.Total,
			CommentCount: item.Metadata.Connections.Comments.Total,
			PublishedAt:  created,
			Duration:     item.Duration,
			Keyword:      keyword,
			CollectedAt:  collectedAt,
		}
		if item.Stats.Plays != nil {
			record.ViewCount = *item.Stats.Plays
		}

		records = append(records, record)
	}

	c.log.Debug("Vimeo search complete",
		logger.String("keyword", keyword),
		logger.Int("videos", len(records)),
		logger.Int("stale", stale))
	return records, nil
}

func largestPicture(p *pictures) string {
	if p == nil {
		return ""
	}
	var best string
	width := -1
	for _, s := range p.Sizes {
		if s.Width > width {
			best, width = s.Link, s.Width
		}
	}
	return best
}
