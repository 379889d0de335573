package persist

import (
	"context"
	"sort"
	"sync"

	"github.com/vburojevic/rounds/internal/domain"
)

// memoryStore keeps encoded snapshots so callers never share state with the store.
type memoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string][]byte)}
}

func (s *memoryStore) Save(_ context.Context, snap *domain.Snapshot) error {
	b, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = b
	return nil
}

func (s *memoryStore) Load(_ context.Context, key string) (*domain.Snapshot, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	s.mu.RLock()
	b, ok := s.snapshots[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(b)
}

func (s *memoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, key)
	return nil
}

func (s *memoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.snapshots))
	for k := range s.snapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Close() error { return nil }

// put stores raw bytes; tests use it to plant corrupt snapshots.
func (s *memoryStore) put(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = b
}
