// Package conversation wraps a memory.Store with per-conversation
// metadata: creation and update times, message counts, aggregate token
// and cost counters, and summary lineage.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/pkg/models"
)

// metadataFileName sits next to the memory snapshot in the session dir.
const metadataFileName = "metadata.json"

// Store owns conversation metadata and delegates message storage to the
// underlying memory store. When dir is empty, metadata is held in memory
// only (sub-agents, tests).
type Store struct {
	mem memory.Store
	dir string

	mu   sync.Mutex
	meta map[string]*models.ConversationMetadata
}

// NewStore creates a conversation store over mem. dir may be empty for a
// non-persistent store.
func NewStore(mem memory.Store, dir string) (*Store, error) {
	if mem == nil {
		return nil, errors.New("conversation: memory store is required")
	}
	s := &Store{
		mem:  mem,
		dir:  dir,
		meta: make(map[string]*models.ConversationMetadata),
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("conversation: create session dir: %w", err)
		}
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Memory exposes the underlying message store.
func (s *Store) Memory() memory.Store {
	return s.mem
}

func (s *Store) path() string {
	return filepath.Join(s.dir, metadataFileName)
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("conversation: read metadata: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.meta); err != nil {
		return fmt.Errorf("conversation: decode metadata: %w", err)
	}
	return nil
}

// persist writes metadata.json atomically. Callers must hold s.mu.
func (s *Store) persist() error {
	if s.dir == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("conversation: encode metadata: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, metadataFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("conversation: create temp metadata: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("conversation: write temp metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("conversation: close temp metadata: %w", err)
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("conversation: replace metadata: %w", err)
	}
	return nil
}

func (s *Store) entry(key string) *models.ConversationMetadata {
	meta := s.meta[key]
	if meta == nil {
		now := time.Now().UTC()
		meta = &models.ConversationMetadata{CreatedAt: now, UpdatedAt: now}
		s.meta[key] = meta
	}
	return meta
}

// History returns the conversation's messages in order.
func (s *Store) History(ctx context.Context, key string) ([]models.Message, error) {
	return s.mem.Get(ctx, key)
}

// Append stores messages and updates the conversation's counters.
func (s *Store) Append(ctx context.Context, key string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := s.mem.Append(ctx, key, msgs...); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.entry(key)
	meta.MessageCount += len(msgs)
	meta.UpdatedAt = time.Now().UTC()
	return s.persist()
}

// RecordUsage accumulates token and cost counters for the conversation.
func (s *Store) RecordUsage(key string, usage *models.Usage) error {
	if usage == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.entry(key)
	meta.PromptTokens += int64(usage.PromptTokens)
	meta.CompletionTokens += int64(usage.CompletionTokens)
	meta.EstimatedCost += usage.EstimatedCost
	meta.UpdatedAt = time.Now().UTC()
	return s.persist()
}

// SetTopic records a human-readable topic for the conversation.
func (s *Store) SetTopic(key, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.entry(key)
	meta.Topic = topic
	meta.UpdatedAt = time.Now().UTC()
	return s.persist()
}

// Metadata returns a copy of the conversation's metadata.
func (s *Store) Metadata(key string) (models.ConversationMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.meta[key]
	if !ok {
		return models.ConversationMetadata{}, false
	}
	return *meta, true
}

// ReplaceWithSummary swaps the conversation's history for a single
// summary message and records the lineage. Counters reset to the new
// single-message state; summarizedFrom keeps the prior state id.
func (s *Store) ReplaceWithSummary(ctx context.Context, key string, summary models.Message, priorStateID string) error {
	if err := s.mem.Set(ctx, key, []models.Message{summary}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.entry(key)
	meta.MessageCount = 1
	meta.SummarizedFrom = priorStateID
	meta.UpdatedAt = time.Now().UTC()
	return s.persist()
}

// Delete removes the conversation and its metadata.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.mem.Delete(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, key)
	return s.persist()
}

// Keys lists conversations known to the message store.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.mem.Keys(ctx)
}
