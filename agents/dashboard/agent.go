package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
	"motion-trends/shared/monitoring"
	"motion-trends/shared/scheduler"
	"motion-trends/shared/storage"
)

const agentName = "Trends Dashboard"

// RefreshMetrics describes one snapshot refresh.
type RefreshMetrics struct {
	Generation uint64 `json:"generation"`
	Videos     int    `json:"videos"`
	Keywords   int    `json:"keywords"`
	Source     string `json:"source"`
}

// GetSummary implements the scheduler.Metrics interface
func (m RefreshMetrics) GetSummary() string {
	return fmt.Sprintf("loaded snapshot #%d with %d videos and %d keywords from %s",
		m.Generation, m.Videos, m.Keywords, m.Source)
}

type snapshotFetcher interface {
	Fetch(ctx context.Context) (*models.AnalyticsSnapshot, error)
	Source() string
}

// DashboardAgent keeps the snapshot store fresh and serves the view API.
type DashboardAgent struct {
	config  *config.Config
	log     logger.Logger
	loader  snapshotFetcher
	store   *storage.SnapshotStore
	archive *storage.SnapshotArchive
	variant pipeline.Variant
	policy  pipeline.ErrorPolicy
	group   singleflight.Group
	now     func() time.Time
}

func NewDashboardAgent(cfg *config.Config, log logger.Logger) *DashboardAgent {
	return &DashboardAgent{
		config: cfg,
		log:    log.With(logger.String("agent", agentName)),
		store:  storage.NewSnapshotStore(),
		now:    time.Now,
	}
}

func (d *DashboardAgent) Name() string {
	return agentName
}

func (d *DashboardAgent) Initialize() error {
	d.log.Info("Initializing dashboard")

	variant, err := pipeline.ParseVariant(d.config.Dashboard.Variant)
	if err != nil {
		return err
	}
	policy, err := pipeline.ParseErrorPolicy(d.config.Dashboard.OnError, variant)
	if err != nil {
		return err
	}
	d.variant = variant
	d.policy = policy

	if d.loader == nil {
		d.loader = NewLoader(&d.config.Dashboard)
	}

	if d.archive == nil && d.config.Dashboard.ArchiveDir != "" {
		archive, err := storage.NewSnapshotArchive(d.config.Dashboard.ArchiveDir, 0)
		if err != nil {
			return fmt.Errorf("failed to create snapshot archive: %w", err)
		}
		d.archive = archive
	}

	if err := d.restore(); err != nil {
		// a bad archive only costs the warm start
		d.log.Warn("Could not restore archived snapshot", logger.Error(err))
	}

	d.log.Info("Dashboard initialized",
		logger.String("variant", string(d.variant)),
		logger.String("on_error", string(d.policy)),
		logger.String("source", d.loader.Source()))
	return nil
}

func (d *DashboardAgent) restore() error {
	if d.archive == nil {
		return nil
	}
	if _, ok := d.store.Current(); ok {
		return nil
	}

	entry, err := d.archive.Load()
	if errors.Is(err, storage.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}

	gen := d.store.Replace(entry.Snapshot)
	d.log.Info("Restored archived snapshot",
		logger.Time("saved_at", entry.SavedAt),
		logger.Uint64("generation", gen),
		logger.Int("videos", entry.Snapshot.TotalVideos))
	return nil
}

func (d *DashboardAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()

	metrics, err := d.Refresh(ctx)
	if err != nil {
		return err
	}

	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, time.Since(startTime))
	}
	return nil
}

// Refresh fetches a new snapshot. Concurrent callers share one in-flight
// fetch, so a slow load is never overtaken by a later one.
func (d *DashboardAgent) Refresh(ctx context.Context) (RefreshMetrics, error) {
	// The fetch outlives a canceled caller; the loader's own timeout bounds it.
	ctx = context.WithoutCancel(ctx)

	v, err, shared := d.group.Do("refresh", func() (any, error) {
		return d.refresh(ctx)
	})
	if shared {
		d.log.Debug("Joined in-flight refresh")
	}
	if err != nil {
		return RefreshMetrics{}, err
	}
	return v.(RefreshMetrics), nil
}

func (d *DashboardAgent) refresh(ctx context.Context) (RefreshMetrics, error) {
	snapshot, err := d.loader.Fetch(ctx)
	if err != nil {
		d.applyErrorPolicy(err)
		return RefreshMetrics{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	gen := d.store.Replace(snapshot)

	if d.archive != nil {
		if err := d.archive.Save(snapshot); err != nil {
			d.log.Warn("Failed to archive snapshot", logger.Error(err))
		}
	}

	monitoring.RecordSnapshot(d.Name(), gen, map[string]int{
		string(models.PlatformYouTube): snapshot.Summary.YouTubeVideos,
		string(models.PlatformVimeo):   snapshot.Summary.VimeoVideos,
	})

	return RefreshMetrics{
		Generation: gen,
		Videos:     snapshot.TotalVideos,
		Keywords:   len(snapshot.KeywordTrends),
		Source:     d.loader.Source(),
	}, nil
}

func (d *DashboardAgent) applyErrorPolicy(err error) {
	switch d.policy {
	case pipeline.ClearOnError:
		d.store.Clear(err)
		d.log.Warn("Snapshot load failed, clearing dashboard", logger.Error(err))
	default:
		d.store.RecordError(err)
		if _, ok := d.store.Current(); ok {
			d.log.Warn("Snapshot load failed, serving previous snapshot", logger.Error(err))
		}
	}
}

// Store exposes the snapshot store the API reads from.
func (d *DashboardAgent) Store() *storage.SnapshotStore {
	return d.store
}
