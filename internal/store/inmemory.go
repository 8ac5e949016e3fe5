package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[string][]byte
	calls    map[string][]CallRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		settings: make(map[string][]byte),
		calls:    make(map[string][]CallRecord),
	}
}

func (s *InMemoryStore) SaveSettings(_ context.Context, userID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.settings[userID] = cp
	return nil
}

func (s *InMemoryStore) LoadSettings(_ context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

func (s *InMemoryStore) SaveCallRecord(_ context.Context, record CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.calls[record.UserID] = append(s.calls[record.UserID], record)
	return nil
}

func (s *InMemoryStore) RecentCalls(_ context.Context, userID string, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.calls[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]CallRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
