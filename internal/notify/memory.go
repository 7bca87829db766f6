package notify

import (
	"context"
	"sync"
)

// MemoryStore backs tests and redis-less deployments. Same capped-log
// semantics as RedisStore, but state does not survive a restart.
type MemoryStore struct {
	mu        sync.Mutex
	log       []string
	cap       int
	dismissed *Snapshot
}

func NewMemoryStore(logCap int) *MemoryStore {
	if logCap <= 0 {
		logCap = 50
	}
	return &MemoryStore{cap: logCap}
}

func (s *MemoryStore) HasBeenShown(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, value := range s.log {
		if value == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RecordShown(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, key)
	if len(s.log) > s.cap {
		s.log = s.log[len(s.log)-s.cap:]
	}
	return nil
}

func (s *MemoryStore) SaveDismissed(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = &snap
	return nil
}

func (s *MemoryStore) LoadDismissed(_ context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dismissed == nil {
		return Snapshot{}, false, nil
	}
	return *s.dismissed, true, nil
}

func (s *MemoryStore) ClearDismissed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = nil
	return nil
}
