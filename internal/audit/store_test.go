package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skein-dev/skein/pkg/models"
)

func TestRecordAndList(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	call := models.ToolCall{ID: "c1", Name: "reverse_text", Arguments: `{"text":"abc"}`}
	ok := models.ToolExecutionResult{
		ID: "c1", Name: "reverse_text",
		Status: models.StatusSuccess, Type: models.ResultText,
		Result: "cba", DurationMs: 12,
	}
	if err := store.Record(ctx, "conv-1", "msg-1", call, ok); err != nil {
		t.Fatalf("record: %v", err)
	}

	failed := models.ErrorResult(models.ToolCall{ID: "c2", Name: "shell"}, models.ReasonDenied, "denied by user", 0)
	if err := store.Record(ctx, "conv-1", "msg-1", models.ToolCall{ID: "c2", Name: "shell", Arguments: "{}"}, failed); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, "conv-2", "msg-9", call, ok); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, err := store.List(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].ToolName != "reverse_text" || events[0].Result != "cba" || events[0].DurationMs != 12 {
		t.Fatalf("event 0 = %+v", events[0])
	}
	if events[1].Status != models.StatusError || events[1].ErrorReason != string(models.ReasonDenied) {
		t.Fatalf("event 1 = %+v", events[1])
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var store *Store
	err := store.Record(context.Background(), "c", "m", models.ToolCall{}, models.ToolExecutionResult{})
	if err != nil {
		t.Fatalf("nil record: %v", err)
	}
}
