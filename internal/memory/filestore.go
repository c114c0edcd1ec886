package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/skein-dev/skein/pkg/models"
)

// memoryFileName is the snapshot document inside the session directory.
const memoryFileName = "memory.json"

// FileStore is a Store persisted as a single JSON document per session
// directory. Writes are atomic: the snapshot is written to a temp file
// and renamed into place. The full document is kept in memory; the disk
// copy is rewritten after every mutation.
type FileStore struct {
	mu      sync.RWMutex
	dir     string
	data    map[string][]models.Message
	appends *keyLocker
}

// OpenFileStore loads (or creates) the store rooted at dir.
func OpenFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("memory: session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create session dir: %w", err)
	}

	store := &FileStore{
		dir:     dir,
		data:    make(map[string][]models.Message),
		appends: newKeyLocker(),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, memoryFileName)
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("memory: read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("memory: decode snapshot: %w", err)
	}
	return nil
}

// persist writes the full document atomically. Callers must hold s.mu.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, memoryFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("memory: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("memory: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory: replace snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.data[key]
	if !ok {
		return []models.Message{}, nil
	}
	return models.CloneMessages(msgs), nil
}

func (s *FileStore) Set(ctx context.Context, key string, msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = models.CloneMessages(msgs)
	return s.persist()
}

func (s *FileStore) Append(ctx context.Context, key string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	unlock := s.appends.lock(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append(s.data[key], models.CloneMessages(msgs)...)
	return s.persist()
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.persist()
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]models.Message)
	return s.persist()
}

func (s *FileStore) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.data))
	for key, msgs := range s.data {
		snap[key] = models.CloneMessages(msgs)
	}
	return snap, nil
}

func (s *FileStore) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]models.Message, len(snap))
	for key, msgs := range snap {
		s.data[key] = models.CloneMessages(msgs)
	}
	return s.persist()
}
