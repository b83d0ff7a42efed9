package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"motion-trends/internal/models"
	"motion-trends/shared/config"
)

// maxSnapshotBytes caps how much of a snapshot response is read.
const maxSnapshotBytes = 32 << 20

// Loader fetches data/trends.json from an HTTP URL or a local file.
type Loader struct {
	url    string
	path   string
	client *http.Client
}

func NewLoader(cfg *config.DashboardConfig) *Loader {
	timeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		url:  cfg.SnapshotURL,
		path: cfg.SnapshotFile,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Source describes where snapshots come from, for logs.
func (l *Loader) Source() string {
	if l.url != "" {
		return l.url
	}
	return l.path
}

// Fetch loads and decodes one snapshot. The URL takes precedence over the
// file path when both are configured.
func (l *Loader) Fetch(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	if l.url != "" {
		return l.fetchHTTP(ctx)
	}
	return l.fetchFile()
}

func (l *Loader) fetchHTTP(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// the snapshot is regenerated in place, so never accept a cached copy
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot source returned status %d", resp.StatusCode)
	}

	return decodeSnapshot(io.LimitReader(resp.Body, maxSnapshotBytes))
}

func (l *Loader) fetchFile() (*models.AnalyticsSnapshot, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	return decodeSnapshot(f)
}

func decodeSnapshot(r io.Reader) (*models.AnalyticsSnapshot, error) {
	var snapshot models.AnalyticsSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	snapshot.Normalize()
	return &snapshot, nil
}
