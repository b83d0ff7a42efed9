package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"motion-trends/internal/models"
)

const (
	lastSnapshotFile = "last_snapshot.json"
	historyDir       = "history"
	historyLayout    = "20060102-150405"
)

// SnapshotArchive persists the last good snapshot to disk so a restarted
// process can serve data before its first successful load. When maxAge is
// positive every saved snapshot is also kept under history/ until it expires.
type SnapshotArchive struct {
	dir    string
	maxAge time.Duration
	mu     sync.Mutex
	now    func() time.Time
}

// ArchivedSnapshot is the on-disk envelope.
type ArchivedSnapshot struct {
	SavedAt  time.Time                 `json:"saved_at"`
	Snapshot *models.AnalyticsSnapshot `json:"snapshot"`
}

// NewSnapshotArchive creates the archive directory and drops expired history.
func NewSnapshotArchive(dataDir string, maxAge time.Duration) (*SnapshotArchive, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	archive := &SnapshotArchive{
		dir:    dataDir,
		maxAge: maxAge,
		now:    time.Now,
	}

	if maxAge > 0 {
		if err := os.MkdirAll(filepath.Join(dataDir, historyDir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		if _, err := archive.Prune(); err != nil {
			return nil, err
		}
	}

	return archive, nil
}

// Save writes the snapshot as the new last-good copy.
func (a *SnapshotArchive) Save(snapshot *models.AnalyticsSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot archive a nil snapshot")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	savedAt := a.now()
	entry := ArchivedSnapshot{SavedAt: savedAt, Snapshot: snapshot}

	if err := writeJSONAtomic(filepath.Join(a.dir, lastSnapshotFile), entry); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if a.maxAge > 0 {
		name := savedAt.UTC().Format(historyLayout) + ".json"
		if err := writeJSONAtomic(filepath.Join(a.dir, historyDir, name), entry); err != nil {
			return fmt.Errorf("failed to save snapshot history: %w", err)
		}
	}
	return nil
}

// Load returns the last saved snapshot. It returns ErrNoSnapshot when
// nothing has been archived yet.
func (a *SnapshotArchive) Load() (*ArchivedSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(filepath.Join(a.dir, lastSnapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer file.Close()

	var entry ArchivedSnapshot
	if err := json.NewDecoder(file).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode archive data: %w", err)
	}
	if entry.Snapshot == nil {
		return nil, ErrNoSnapshot
	}
	entry.Snapshot.Normalize()
	return &entry, nil
}

// History lists archived snapshot times, newest first.
func (a *SnapshotArchive) History() ([]time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history()
}

// Prune removes history entries older than maxAge and returns how many were
// removed.
func (a *SnapshotArchive) Prune() (int, error) {
	if a.maxAge <= 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	times, err := a.history()
	if err != nil {
		return 0, err
	}

	cutoff := a.now().Add(-a.maxAge)
	removed := 0
	for _, t := range times {
		if !t.Before(cutoff) {
			continue
		}
		path := filepath.Join(a.dir, historyDir, t.UTC().Format(historyLayout)+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

func (a *SnapshotArchive) history() ([]time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(a.dir, historyDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var times []time.Time
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		t, err := time.ParseInLocation(historyLayout, name, time.UTC)
		if err != nil {
			continue
		}
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return times, nil
}

// WriteSnapshotFile writes a bare snapshot (no envelope) atomically. The
// collector uses it for the published trends.json.
func WriteSnapshotFile(path string, snapshot *models.AnalyticsSnapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return writeJSONAtomic(path, snapshot)
}

// writeJSONAtomic writes to a temp file in the same directory and renames it
// over path, so readers never see a partial file.
func writeJSONAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
