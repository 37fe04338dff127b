package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/rocketshoes-cart/internal/engine"
)

// Every backend keeps one opaque snapshot per session with overwrite-whole-value
// semantics. Load returns nil, nil when nothing was saved.
var (
	_ engine.Store = (*MemoryStore)(nil)
	_ engine.Store = (*RedisStore)(nil)
	_ engine.Store = (*MongoStore)(nil)
)

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[snapshotKey(sessionID)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshotKey(sessionID)] = append([]byte(nil), snapshot...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, snapshotKey(sessionID))
	return nil
}
