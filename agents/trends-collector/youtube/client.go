package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"motion-trends/internal/models"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
)

const watchURL = "https://www.youtube.com/watch?v=%s"

type Client struct {
	service     *youtube.Service
	config      *config.YouTubeConfig
	log         logger.Logger
	oauthConfig *oauth2.Config // nil in API key mode
	token       *oauth2.Token
	now         func() time.Time
}

// NewClient authenticates with the API key when one is configured and falls
// back to an OAuth token file (device flow on first use) otherwise.
func NewClient(ctx context.Context, cfg *config.YouTubeConfig, log logger.Logger) (*Client, error) {
	if cfg.APIKey != "" {
		return newClient(ctx, cfg, log, option.WithAPIKey(cfg.APIKey))
	}

	// Create OAuth2 config for the device authorization flow.
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{youtube.YoutubeReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token, err := getToken(oauthConfig, cfg.TokenFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	// Token source that auto-refreshes and saves the token
	tokenSource := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
		log:       log,
	}

	client, err := newClient(ctx, cfg, log, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, err
	}
	client.oauthConfig = oauthConfig
	client.token = token
	return client, nil
}

func newClient(ctx context.Context, cfg *config.YouTubeConfig, log logger.Logger, opts ...option.ClientOption) (*Client, error) {
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{
		service: service,
		config:  cfg,
		log:     log,
		now:     time.Now,
	}, nil
}

// tokenSaver wraps an oauth2.TokenSource so refreshed tokens are written
// back to disk and survive restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	log       logger.Logger
	mu        sync.Mutex
}

// Token implements oauth2.TokenSource.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		ts.log.Info("Token refreshed, saving to file", logger.String("token_file", ts.tokenFile))
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			ts.log.Warn("Failed to save refreshed token", logger.Error(err))
		}
	}

	return newToken, nil
}

// getToken loads the token from disk and only starts the device flow when no
// usable token exists. An expired token with a refresh token is still usable.
func getToken(config *oauth2.Config, tokenFile string, log logger.Logger) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		if tok.RefreshToken != "" {
			log.Info("Loaded token from file", logger.Time("expires", tok.Expiry))
			return tok, nil
		}
		if tok.Valid() {
			return tok, nil
		}
	}

	log.Info("Requesting new token via device authorization")
	tok, err = getTokenFromWeb(config, log)
	if err != nil {
		return nil, err
	}

	if err := saveToken(tokenFile, tok); err != nil {
		log.Warn("Failed to save token", logger.Error(err))
	}
	return tok, nil
}

func getTokenFromWeb(config *oauth2.Config, log logger.Logger) (*oauth2.Token, error) {
	tok, err := getTokenWithDeviceFlow(config)
	if err == nil {
		return tok, nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		log.Error("Device authorization response failed",
			logger.String("status", retrieveErr.Response.Status),
			logger.String("body", strings.TrimSpace(string(retrieveErr.Body))))
	} else {
		log.Error("Device authorization flow failed", logger.Error(err))
	}

	return nil, fmt.Errorf("device authorization failed: %w. Ensure your OAuth client is created as 'TVs and Limited Input devices' and that the YouTube Data API v3 is enabled", err)
}

func getTokenWithDeviceFlow(config *oauth2.Config) (*oauth2.Token, error) {
	ctx := context.Background()

	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("unable to start device authorization: %w", err)
	}

	// Interactive prompt, printed to the terminal rather than the JSON log.
	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Printf("YOUTUBE DEVICE AUTHORIZATION REQUIRED\n")
	fmt.Printf("%s\n", strings.Repeat("=", 80))
	fmt.Printf("1. Visit %s in your browser (any device works).\n", resp.VerificationURI)
	fmt.Printf("2. Enter this code when prompted: %s\n\n", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		fmt.Printf("   Or open directly: %s\n\n", completeURL)
	}
	fmt.Printf("Waiting for authorization to complete... (Ctrl+C to cancel)\n")
	fmt.Printf("%s\n", strings.Repeat("-", 80))

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization did not complete: %w", err)
	}

	fmt.Printf("\nAuthorization successful.\n%s\n\n", strings.Repeat("=", 80))
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}
	return nil
}

// RefreshToken refreshes the OAuth token ahead of a run so a long idle
// period between daily collections does not surface as a failed search.
// It is a no-op in API key mode.
func (c *Client) RefreshToken() error {
	if c.oauthConfig == nil {
		return nil
	}

	newToken, err := c.oauthConfig.TokenSource(context.Background(), c.token).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	if newToken.AccessToken != c.token.AccessToken {
		c.log.Info("Token refreshed, saving to file")
		c.token = newToken
		if err := saveToken(c.config.TokenFile, newToken); err != nil {
			return fmt.Errorf("failed to save refreshed token: %w", err)
		}
	} else {
		c.log.Debug("Token still valid", logger.Time("expires", c.token.Expiry))
	}

	return nil
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseDurationSeconds converts an ISO 8601 duration such as "PT1M30S".
func parseDurationSeconds(duration string) int {
	matches := isoDuration.FindStringSubmatch(duration)
	if matches == nil {
		return 0
	}

	var total int
	for i, unit := range []int{3600, 60, 1} {
		if n, err := strconv.Atoi(matches[i+1]); err == nil {
			total += n * unit
		}
	}
	return total
}

// SearchVideos returns the most viewed videos for a keyword published after
// the given time. Statistics come from a second videos.list call; results
// keep the search order.
func (c *Client) SearchVideos(ctx context.Context, keyword string, maxResults int64, publishedAfter time.Time) ([]models.VideoRecord, error) {
	searchResponse, err := c.service.Search.List([]string{"snippet"}).
		Q(keyword).
		Type("video").
		Order("viewCount").
		MaxResults(maxResults).
		PublishedAfter(publishedAfter.UTC().Format(time.RFC3339)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", keyword, err)
	}

	var ids []string
	for _, item := range searchResponse.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return []models.VideoRecord{}, nil
	}

	videosResponse, err := c.service.Videos.List([]string{"statistics", "contentDetails"}).
		Id(strings.Join(ids, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get video statistics for %q: %w", keyword, err)
	}

	details := make(map[string]*youtube.Video, len(videosResponse.Items))
	for _, v := range videosResponse.Items {
		details[v.Id] = v
	}

	collectedAt := c.now().Format(time.RFC3339)
	records := make([]models.VideoRecord, 0, len(ids))
	for _, item := range searchResponse.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		id := item.Id.VideoId

		record := models.VideoRecord{
			ID:          id,
			URL:         fmt.Sprintf(watchURL, id),
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Channel:     item.Snippet.ChannelTitle,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
			Platform:    models.PlatformYouTube,
			PublishedAt: models.ParseTimestamp(item.Snippet.PublishedAt),
			Keyword:     keyword,
			CollectedAt: collectedAt,
		}

		if v, ok := details[id]; ok {
			if v.Statistics != nil {
				record.ViewCount = int64(v.Statistics.ViewCount)
				record.LikeCount = int64(v.Statistics.LikeCount)
				record.CommentCount = int64(v.Statistics.CommentCount)
			}
			if v.ContentDetails != nil {
				record.Duration = parseDurationSeconds(v.ContentDetails.Duration)
			}
		}

		records = append(records, record)
	}

	c.log.Debug("YouTube search complete",
		logger.String("keyword", keyword),
		logger.Int("videos", len(records)))
	return records, nil
}

// thumbnailURL prefers the high resolution thumbnail.
func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
