package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skein-dev/skein/pkg/models"
)

func testMessage(id, text string) models.Message {
	return models.Message{
		ID:        id,
		Role:      models.RoleUser,
		Content:   models.TextContent(text),
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	file, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return map[string]Store{
		"inmem": NewInMemoryStore(),
		"file":  file,
	}
}

func TestGetAbsentKeyReturnsEmpty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := store.Get(context.Background(), "missing")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if msgs == nil || len(msgs) != 0 {
				t.Fatalf("expected empty slice, got %#v", msgs)
			}
		})
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Append(ctx, "conv", testMessage("a", "1"), testMessage("b", "2")); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := store.Append(ctx, "conv", testMessage("c", "3")); err != nil {
				t.Fatalf("append: %v", err)
			}
			msgs, err := store.Get(ctx, "conv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			ids := []string{"a", "b", "c"}
			if len(msgs) != len(ids) {
				t.Fatalf("got %d messages", len(msgs))
			}
			for i, id := range ids {
				if msgs[i].ID != id {
					t.Fatalf("position %d = %s, want %s", i, msgs[i].ID, id)
				}
			}
		})
	}
}

func TestConcurrentAppendLosesNothing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 8
			const perWriter = 20

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						id := fmt.Sprintf("w%d-%d", w, i)
						if err := store.Append(ctx, "conv", testMessage(id, id)); err != nil {
							t.Errorf("append %s: %v", id, err)
						}
					}
				}(w)
			}
			wg.Wait()

			msgs, err := store.Get(ctx, "conv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(msgs) != writers*perWriter {
				t.Fatalf("got %d messages, want %d", len(msgs), writers*perWriter)
			}
		})
	}
}

func TestGetReturnsClone(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Set(ctx, "conv", []models.Message{testMessage("a", "1")}); err != nil {
				t.Fatalf("set: %v", err)
			}
			msgs, _ := store.Get(ctx, "conv")
			msgs[0].Content = models.TextContent("mutated")

			again, _ := store.Get(ctx, "conv")
			if again[0].Content.Text != "1" {
				t.Fatal("store state was mutated through a returned slice")
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := Snapshot{
				"default":     {testMessage("a", "1"), testMessage("b", "2")},
				"agent:sub:1": {testMessage("c", "3")},
			}
			if err := store.ImportSnapshot(ctx, seed); err != nil {
				t.Fatalf("import: %v", err)
			}
			exported, err := store.ExportSnapshot(ctx)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if len(exported) != len(seed) {
				t.Fatalf("exported %d keys, want %d", len(exported), len(seed))
			}
			for key, msgs := range seed {
				got := exported[key]
				if len(got) != len(msgs) {
					t.Fatalf("key %s: %d messages, want %d", key, len(got), len(msgs))
				}
				for i := range msgs {
					if got[i].ID != msgs[i].ID {
						t.Fatalf("key %s position %d: %s != %s", key, i, got[i].ID, msgs[i].ID)
					}
				}
			}
		})
	}
}

func TestDeleteAndKeysAndClear(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.Set(ctx, "one", []models.Message{testMessage("a", "1")})
			store.Set(ctx, "two", []models.Message{testMessage("b", "2")})

			keys, _ := store.Keys(ctx)
			if len(keys) != 2 || keys[0] != "one" || keys[1] != "two" {
				t.Fatalf("keys = %v", keys)
			}

			store.Delete(ctx, "one")
			keys, _ = store.Keys(ctx)
			if len(keys) != 1 || keys[0] != "two" {
				t.Fatalf("keys after delete = %v", keys)
			}

			store.Clear(ctx)
			keys, _ = store.Keys(ctx)
			if len(keys) != 0 {
				t.Fatalf("keys after clear = %v", keys)
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Append(ctx, "conv", testMessage("a", "persisted")); err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	msgs, err := reopened.Get(ctx, "conv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content.Text != "persisted" {
		t.Fatalf("reopened store lost data: %#v", msgs)
	}
}
