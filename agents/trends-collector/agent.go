package trendscollector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"motion-trends/agents/trends-collector/trends"
	"motion-trends/agents/trends-collector/vimeo"
	"motion-trends/agents/trends-collector/youtube"
	"motion-trends/internal/models"
	"motion-trends/shared/ai"
	"motion-trends/shared/config"
	"motion-trends/shared/email"
	"motion-trends/shared/logger"
	"motion-trends/shared/monitoring"
	"motion-trends/shared/scheduler"
	"motion-trends/shared/storage"
)

const agentName = "Trends Collector"

// searchConcurrency bounds in-flight keyword searches per platform.
const searchConcurrency = 3

// CollectorMetrics describes one collection run.
type CollectorMetrics struct {
	YouTubeVideos int
	VimeoVideos   int
	Keywords      int
	TotalViews    int64
	OutputFile    string
	Briefed       bool
	Emailed       bool
}

// GetSummary implements the scheduler.Metrics interface
func (m CollectorMetrics) GetSummary() string {
	summary := fmt.Sprintf("collected %d videos (%d YouTube, %d Vimeo) across %d keywords, wrote %s",
		m.YouTubeVideos+m.VimeoVideos, m.YouTubeVideos, m.VimeoVideos, m.Keywords, m.OutputFile)
	if m.Emailed {
		summary += ", digest sent"
	}
	return summary
}

type youtubeSearcher interface {
	SearchVideos(ctx context.Context, keyword string, maxResults int64, publishedAfter time.Time) ([]models.VideoRecord, error)
	RefreshToken() error
}

type vimeoSearcher interface {
	SearchVideos(ctx context.Context, keyword string, perPage int) ([]models.VideoRecord, error)
}

type trendBriefer interface {
	Brief(ctx context.Context, snapshot *models.AnalyticsSnapshot) (*models.TrendBrief, error)
}

type digestSender interface {
	SendDigest(report *models.DigestReport) error
}

// CollectorAgent implements the scheduler.Agent interface. It searches both
// platforms, builds the analytics snapshot and publishes it to OutputFile.
type CollectorAgent struct {
	config  *config.Config
	log     logger.Logger
	youtube youtubeSearcher
	vimeo   vimeoSearcher
	briefer trendBriefer
	sender  digestSender
	archive *storage.SnapshotArchive
	runs    atomic.Uint64
	now     func() time.Time
}

func NewCollectorAgent(cfg *config.Config, log logger.Logger) *CollectorAgent {
	return &CollectorAgent{
		config: cfg,
		log:    log.With(logger.String("agent", agentName)),
		now:    time.Now,
	}
}

func (a *CollectorAgent) Name() string {
	return agentName
}

func (a *CollectorAgent) Initialize() error {
	a.log.Info("Initializing trends collector")
	col := &a.config.Collector

	if a.youtube == nil && col.YouTubeEnabled() {
		client, err := youtube.NewClient(context.Background(), &col.YouTube, a.log)
		if err != nil {
			return fmt.Errorf("failed to create YouTube client: %w", err)
		}
		a.youtube = client
		a.log.Info("YouTube client initialized")
	}

	if a.vimeo == nil && col.VimeoEnabled() {
		a.vimeo = vimeo.NewClient(&col.Vimeo, a.lookback(), a.log)
		a.log.Info("Vimeo client initialized")
	}

	if a.youtube == nil && a.vimeo == nil {
		return fmt.Errorf("no platform configured")
	}

	if a.briefer == nil && a.config.AI.GeminiAPIKey != "" {
		briefer, err := ai.NewBriefer(context.Background(), &a.config.AI, a.log)
		if err != nil {
			return fmt.Errorf("failed to create trend briefer: %w", err)
		}
		a.briefer = briefer
		a.log.Info("Trend briefer initialized", logger.String("model", a.config.AI.Model))
	}

	if a.sender == nil && a.config.Email.Enabled {
		a.sender = email.NewSender(&a.config.Email)
		a.log.Info("Email sender initialized")
	}

	if a.archive == nil {
		retention := time.Duration(col.ArchiveRetention) * 24 * time.Hour
		archive, err := storage.NewSnapshotArchive(filepath.Dir(col.OutputFile), retention)
		if err != nil {
			return fmt.Errorf("failed to create snapshot archive: %w", err)
		}
		a.archive = archive
	}

	return nil
}

func (a *CollectorAgent) lookback() time.Duration {
	return time.Duration(a.config.Collector.LookbackDays) * 24 * time.Hour
}

func (a *CollectorAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	col := &a.config.Collector

	partial := func(err error) {
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(err, time.Since(startTime))
		}
	}

	var youtubeVideos, vimeoVideos []models.VideoRecord
	var youtubeErr, vimeoErr error

	var g errgroup.Group
	if a.youtube != nil {
		g.Go(func() error {
			youtubeVideos, youtubeErr = a.collectYouTube(ctx)
			return nil
		})
	}
	if a.vimeo != nil {
		g.Go(func() error {
			vimeoVideos, vimeoErr = a.collectVimeo(ctx)
			return nil
		})
	}
	_ = g.Wait()

	// a platform that is not configured counts as failed for this check
	youtubeFailed := a.youtube == nil || youtubeErr != nil
	vimeoFailed := a.vimeo == nil || vimeoErr != nil
	if youtubeFailed && vimeoFailed {
		return fmt.Errorf("all platforms failed: %w", errors.Join(youtubeErr, vimeoErr))
	}
	if youtubeErr != nil {
		partial(fmt.Errorf("youtube collection failed: %w", youtubeErr))
	}
	if vimeoErr != nil {
		partial(fmt.Errorf("vimeo collection failed: %w", vimeoErr))
	}

	videos := slices.Concat(youtubeVideos, vimeoVideos)
	snapshot, err := trends.BuildSnapshot(videos, a.now(), trends.Options{
		TopVideos:     col.TopVideos,
		TopEngagement: col.TopEngagement,
		TopKeywords:   col.TopKeywords,
	})
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}

	if err := storage.WriteSnapshotFile(col.OutputFile, snapshot); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	a.log.Info("Snapshot written",
		logger.String("output_file", col.OutputFile),
		logger.Int("videos", snapshot.TotalVideos),
		logger.Int64("total_views", snapshot.Summary.TotalViews))

	if a.archive != nil {
		if err := a.archive.Save(snapshot); err != nil {
			a.log.Warn("Failed to archive snapshot", logger.Error(err))
		} else if removed, err := a.archive.Prune(); err != nil {
			a.log.Warn("Failed to prune snapshot history", logger.Error(err))
		} else if removed > 0 {
			a.log.Info("Pruned snapshot history", logger.Int("removed", removed))
		}
	}

	monitoring.RecordSnapshot(a.Name(), a.runs.Add(1), map[string]int{
		string(models.PlatformYouTube): snapshot.Summary.YouTubeVideos,
		string(models.PlatformVimeo):   snapshot.Summary.VimeoVideos,
	})

	metrics := CollectorMetrics{
		YouTubeVideos: snapshot.Summary.YouTubeVideos,
		VimeoVideos:   snapshot.Summary.VimeoVideos,
		Keywords:      len(snapshot.KeywordTrends),
		TotalViews:    snapshot.Summary.TotalViews,
		OutputFile:    col.OutputFile,
	}

	var brief *models.TrendBrief
	if a.briefer != nil {
		brief, err = a.briefer.Brief(ctx, snapshot)
		if err != nil {
			partial(fmt.Errorf("failed to generate trend brief: %w", err))
			brief = nil
		} else {
			metrics.Briefed = true
		}
	}

	if a.sender != nil {
		report := &models.DigestReport{
			Date:     a.now(),
			Snapshot: snapshot,
			Brief:    brief,
		}
		if err := a.sender.SendDigest(report); err != nil {
			partial(fmt.Errorf("failed to send digest: %w", err))
		} else {
			metrics.Emailed = true
			a.log.Info("Digest sent", logger.String("to", a.config.Email.ToEmail))
		}
	}

	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, time.Since(startTime))
	}
	return nil
}

func (a *CollectorAgent) collectYouTube(ctx context.Context) ([]models.VideoRecord, error) {
	if err := a.youtube.RefreshToken(); err != nil {
		return nil, err
	}

	cfg := &a.config.Collector.YouTube
	publishedAfter := a.now().Add(-a.lookback())
	videos, err := searchKeywords(ctx, a.log, cfg.Keywords, func(ctx context.Context, keyword string) ([]models.VideoRecord, error) {
		return a.youtube.SearchVideos(ctx, keyword, cfg.MaxResults, publishedAfter)
	})
	if err != nil {
		return nil, err
	}
	return keepTop(videos, cfg.KeepTop), nil
}

func (a *CollectorAgent) collectVimeo(ctx context.Context) ([]models.VideoRecord, error) {
	cfg := &a.config.Collector.Vimeo
	videos, err := searchKeywords(ctx, a.log, cfg.Keywords, func(ctx context.Context, keyword string) ([]models.VideoRecord, error) {
		return a.vimeo.SearchVideos(ctx, keyword, cfg.PerPage)
	})
	if err != nil {
		return nil, err
	}
	return keepTop(videos, cfg.KeepTop), nil
}

// searchKeywords runs one search per keyword with bounded concurrency and
// concatenates the results in keyword order. A failing keyword is skipped;
// the platform only fails when every keyword does.
func searchKeywords(ctx context.Context, log logger.Logger, keywords []string, search func(context.Context, string) ([]models.VideoRecord, error)) ([]models.VideoRecord, error) {
	results := make([][]models.VideoRecord, len(keywords))
	errs := make([]error, len(keywords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, keyword := range keywords {
		g.Go(func() error {
			videos, err := search(gctx, keyword)
			if err != nil {
				log.Warn("Keyword search failed", logger.String("keyword", keyword), logger.Error(err))
				errs[i] = err
				return nil
			}
			results[i] = videos
			return nil
		})
	}
	_ = g.Wait()

	var videos []models.VideoRecord
	var failed []error
	for i := range keywords {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		videos = append(videos, results[i]...)
	}
	if len(keywords) > 0 && len(failed) == len(keywords) {
		return nil, errors.Join(failed...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return videos, nil
}

// keepTop dedupes by URL and keeps the n most viewed videos.
func keepTop(videos []models.VideoRecord, n int) []models.VideoRecord {
	videos = trends.Dedupe(videos)
	trends.SortByViews(videos)
	if n > 0 && len(videos) > n {
		videos = videos[:n]
	}
	return videos
}
