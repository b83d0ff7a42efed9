package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"motion-trends/shared/logger"
)

type Config struct {
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Collector  CollectorConfig  `yaml:"collector"`
	AI         AIConfig         `yaml:"ai"`
	Email      EmailConfig      `yaml:"email"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logger.Config    `yaml:"logging"`
}

type DashboardConfig struct {
	SnapshotURL  string `yaml:"snapshot_url" env:"SNAPSHOT_URL"`
	SnapshotFile string `yaml:"snapshot_file"`
	// Schedule is a cron spec; the dashboard refreshes every 10 minutes by default.
	Schedule           string   `yaml:"schedule"`
	Variant            string   `yaml:"variant"`
	OnError            string   `yaml:"on_error"`
	ArchiveDir         string   `yaml:"archive_dir"`
	TopVideosLimit     int      `yaml:"top_videos_limit"`
	TopEngagementLimit int      `yaml:"top_engagement_limit"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	FetchTimeoutSecs   int      `yaml:"fetch_timeout_seconds"`
}

type CollectorConfig struct {
	YouTube    YouTubeConfig `yaml:"youtube"`
	Vimeo      VimeoConfig   `yaml:"vimeo"`
	OutputFile string        `yaml:"output_file"`
	Schedule   string        `yaml:"schedule"`
	// LookbackDays limits collection to recently published videos.
	LookbackDays     int `yaml:"lookback_days"`
	TopVideos        int `yaml:"top_videos"`
	TopEngagement    int `yaml:"top_engagement"`
	TopKeywords      int `yaml:"top_keywords"`
	ArchiveRetention int `yaml:"archive_retention_days"`
}

type YouTubeConfig struct {
	APIKey       string   `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	ClientID     string   `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile    string   `yaml:"token_file"`
	Keywords     []string `yaml:"keywords"`
	MaxResults   int64    `yaml:"max_results"`
	KeepTop      int      `yaml:"keep_top"`
}

type VimeoConfig struct {
	AccessToken string   `yaml:"access_token" env:"VIMEO_ACCESS_TOKEN"`
	BaseURL     string   `yaml:"base_url"`
	Keywords    []string `yaml:"keywords"`
	PerPage     int      `yaml:"per_page"`
	KeepTop     int      `yaml:"keep_top"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
}

type EmailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

var defaultYouTubeKeywords = []string{
	"motion graphics 2024",
	"motion design trends",
	"after effects animation",
	"cinema 4d motion",
	"blender motion graphics",
	"3d motion design",
}

var defaultVimeoKeywords = []string{
	"motion graphics",
	"motion design",
	"3d animation",
	"cinema 4d",
	"after effects",
	"creative coding",
}

// Load reads .env, then the YAML file named by CONFIG_FILE (config.yaml by
// default), then fills secrets from the environment and applies defaults.
// A missing config file is not an error: every setting has a default or an
// environment fallback.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	case os.IsNotExist(err) && os.Getenv("CONFIG_FILE") == "":
		// defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	envFallback(&c.Dashboard.SnapshotURL, "SNAPSHOT_URL")
	envFallback(&c.Collector.YouTube.APIKey, "YOUTUBE_API_KEY")
	envFallback(&c.Collector.YouTube.ClientID, "GOOGLE_CLIENT_ID")
	envFallback(&c.Collector.YouTube.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envFallback(&c.Collector.Vimeo.AccessToken, "VIMEO_ACCESS_TOKEN")
	envFallback(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	envFallback(&c.Email.Username, "EMAIL_USERNAME")
	envFallback(&c.Email.Password, "EMAIL_PASSWORD")
	envFallback(&c.Logging.Level, "LOG_LEVEL")
}

func envFallback(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func (c *Config) applyDefaults() {
	d := &c.Dashboard
	if d.SnapshotURL == "" && d.SnapshotFile == "" {
		d.SnapshotFile = "data/trends.json"
	}
	if d.Schedule == "" {
		d.Schedule = "@every 10m"
	}
	if d.Variant == "" {
		d.Variant = "consolidated"
	}
	if d.ArchiveDir == "" {
		d.ArchiveDir = "data"
	}
	if d.TopVideosLimit == 0 {
		d.TopVideosLimit = 10
	}
	if d.TopEngagementLimit == 0 {
		d.TopEngagementLimit = 10
	}
	if d.FetchTimeoutSecs == 0 {
		d.FetchTimeoutSecs = 30
	}

	col := &c.Collector
	if col.OutputFile == "" {
		col.OutputFile = "data/trends.json"
	}
	if col.Schedule == "" {
		col.Schedule = "CRON_TZ=Asia/Seoul 0 0 9 * * *" // Daily at 9 AM KST
	}
	if col.LookbackDays == 0 {
		col.LookbackDays = 30
	}
	if col.TopVideos == 0 {
		col.TopVideos = 20
	}
	if col.TopEngagement == 0 {
		col.TopEngagement = 10
	}
	if col.TopKeywords == 0 {
		col.TopKeywords = 10
	}
	if col.YouTube.TokenFile == "" {
		col.YouTube.TokenFile = "youtube_token.json"
	}
	if len(col.YouTube.Keywords) == 0 {
		col.YouTube.Keywords = defaultYouTubeKeywords
	}
	if col.YouTube.MaxResults == 0 {
		col.YouTube.MaxResults = 10
	}
	if col.YouTube.KeepTop == 0 {
		col.YouTube.KeepTop = 50
	}
	if col.Vimeo.BaseURL == "" {
		col.Vimeo.BaseURL = "https://api.vimeo.com"
	}
	if len(col.Vimeo.Keywords) == 0 {
		col.Vimeo.Keywords = defaultVimeoKeywords
	}
	if col.Vimeo.PerPage == 0 {
		col.Vimeo.PerPage = 10
	}
	if col.Vimeo.KeepTop == 0 {
		col.Vimeo.KeepTop = 30
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ValidateDashboard checks the settings the dashboard agent needs.
func (c *Config) ValidateDashboard() error {
	if c.Dashboard.SnapshotURL == "" && c.Dashboard.SnapshotFile == "" {
		return fmt.Errorf("a snapshot source is required (set SNAPSHOT_URL or dashboard.snapshot_file)")
	}
	if c.Dashboard.SnapshotURL != "" &&
		!strings.HasPrefix(c.Dashboard.SnapshotURL, "http://") &&
		!strings.HasPrefix(c.Dashboard.SnapshotURL, "https://") {
		return fmt.Errorf("dashboard.snapshot_url must be an http(s) URL, got %q", c.Dashboard.SnapshotURL)
	}
	if c.Dashboard.TopVideosLimit < 0 || c.Dashboard.TopEngagementLimit < 0 {
		return fmt.Errorf("dashboard top list limits must not be negative")
	}
	return nil
}

// ValidateCollector checks the settings the trends collector needs.
func (c *Config) ValidateCollector() error {
	yt := c.Collector.YouTube
	hasYouTube := yt.APIKey != "" || (yt.ClientID != "" && yt.ClientSecret != "")
	if !hasYouTube && c.Collector.Vimeo.AccessToken == "" {
		return fmt.Errorf("at least one platform is required (set YOUTUBE_API_KEY, GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or VIMEO_ACCESS_TOKEN)")
	}
	if c.Collector.OutputFile == "" {
		return fmt.Errorf("collector.output_file is required")
	}
	if c.Email.Enabled {
		if c.Email.Username == "" {
			return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
		}
		if c.Email.Password == "" {
			return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
		}
		if c.Email.SMTPServer == "" || c.Email.ToEmail == "" {
			return fmt.Errorf("email.smtp_server and email.to_email are required when email is enabled")
		}
	}
	return nil
}

// YouTubeEnabled reports whether any YouTube credentials are configured.
func (c *CollectorConfig) YouTubeEnabled() bool {
	return c.YouTube.APIKey != "" || (c.YouTube.ClientID != "" && c.YouTube.ClientSecret != "")
}

// VimeoEnabled reports whether a Vimeo token is configured.
func (c *CollectorConfig) VimeoEnabled() bool {
	return c.Vimeo.AccessToken != ""
}
