package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/skein-dev/skein/pkg/models"
)

// InMemoryStore is a Store backed by a process-local map. Reads return
// clones so callers cannot mutate store-owned state.
type InMemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]models.Message
	appends *keyLocker
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data:    make(map[string][]models.Message),
		appends: newKeyLocker(),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.data[key]
	if !ok {
		return []models.Message{}, nil
	}
	return models.CloneMessages(msgs), nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = models.CloneMessages(msgs)
	return nil
}

func (s *InMemoryStore) Append(ctx context.Context, key string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	unlock := s.appends.lock(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append(s.data[key], models.CloneMessages(msgs)...)
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]models.Message)
	return nil
}

func (s *InMemoryStore) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.data))
	for key, msgs := range s.data {
		snap[key] = models.CloneMessages(msgs)
	}
	return snap, nil
}

func (s *InMemoryStore) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]models.Message, len(snap))
	for key, msgs := range snap {
		s.data[key] = models.CloneMessages(msgs)
	}
	return nil
}
