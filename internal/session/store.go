// Package session owns the authoritative "is this employee currently clocked
// in" state, independent of any UI. The open entry at the remote store is the
// source of truth; the cached copy only avoids a round trip between refreshes.
package session

import (
	"context"
	"sync"

	"shiftly/timeclock/internal/model"
)

type EntrySource interface {
	GetOpenEntry(ctx context.Context, employeeID string) (model.TimeClockEntry, bool, error)
}

type Store struct {
	source     EntrySource
	employeeID string

	mu    sync.Mutex
	entry *model.TimeClockEntry
}

func New(source EntrySource, employeeID string) *Store {
	return &Store{source: source, employeeID: employeeID}
}

// Refresh re-reads the open entry from the store and updates the cache.
// Returns nil when the employee is not clocked in.
func (s *Store) Refresh(ctx context.Context) (*model.TimeClockEntry, error) {
	entry, found, err := s.source.GetOpenEntry(ctx, s.employeeID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !found {
		s.entry = nil
		return nil, nil
	}
	s.entry = &entry
	copied := entry
	return &copied, nil
}

// Active returns the cached open entry without touching the store.
func (s *Store) Active() *model.TimeClockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return nil
	}
	copied := *s.entry
	return &copied
}

func (s *Store) ClockedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry != nil
}

// Set records a locally observed open entry, e.g. right after clock-in.
func (s *Store) Set(entry model.TimeClockEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &entry
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = nil
}
