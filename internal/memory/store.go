// Package memory implements the conversation memory store: a mapping from
// conversation key to an ordered, append-only list of messages, with
// snapshot import/export. Two implementations are provided: an in-memory
// store for sub-agents and tests, and a file-backed store for persistent
// sessions.
package memory

import (
	"context"

	"github.com/skein-dev/skein/pkg/models"
)

// Snapshot is a full copy of a store's contents keyed by conversation.
type Snapshot map[string][]models.Message

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for key, msgs := range s {
		out[key] = models.CloneMessages(msgs)
	}
	return out
}

// Store is the conversation memory contract. Get returns an empty slice
// for absent keys and never fails for that reason. Append is atomic per
// key: concurrent appends on the same key are serialized.
type Store interface {
	Get(ctx context.Context, key string) ([]models.Message, error)
	Set(ctx context.Context, key string, msgs []models.Message) error
	Append(ctx context.Context, key string, msgs ...models.Message) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	ExportSnapshot(ctx context.Context) (Snapshot, error)
	ImportSnapshot(ctx context.Context, snap Snapshot) error
}
