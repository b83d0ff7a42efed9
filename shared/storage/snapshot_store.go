package storage

import (
	"errors"
	"sync"
	"time"

	"motion-trends/internal/models"
)

// ErrNoSnapshot is returned when no snapshot has been loaded yet, or the last
// one was cleared after a failed load.
var ErrNoSnapshot = errors.New("no snapshot loaded")

// SnapshotStore holds the most recent analytics snapshot. Snapshots are
// replaced wholesale and never mutated after Replace; readers share the
// pointer and must treat it as read-only.
type SnapshotStore struct {
	mu         sync.RWMutex
	current    *models.AnalyticsSnapshot
	generation uint64
	loadedAt   time.Time
	lastErr    error
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Current returns the active snapshot, or false when none is present.
func (s *SnapshotStore) Current() (*models.AnalyticsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Replace swaps in a new snapshot and returns its generation number.
// A successful replace also clears the last load error.
func (s *SnapshotStore) Replace(snapshot *models.AnalyticsSnapshot) uint64 {
	if snapshot != nil {
		snapshot.Normalize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snapshot
	s.generation++
	s.loadedAt = time.Now()
	s.lastErr = nil
	return s.generation
}

// Clear drops the active snapshot and records why.
func (s *SnapshotStore) Clear(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.lastErr = err
}

// RecordError keeps the active snapshot but remembers the failed load.
func (s *SnapshotStore) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// Err returns the error of the most recent failed load, if any.
func (s *SnapshotStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Generation returns how many times a snapshot has been installed.
func (s *SnapshotStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// LoadedAt returns when the active snapshot was installed.
func (s *SnapshotStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
