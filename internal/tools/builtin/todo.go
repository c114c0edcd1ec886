package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/skein-dev/skein/internal/tools"
)

// TodoItem is one entry in the session todo list.
type TodoItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Todo maintains a per-process todo list the model can read and update.
// Mutations are scoped to the runtime's lifetime; the list is session
// scratch space, not durable state.
type Todo struct {
	mu    sync.Mutex
	items []TodoItem
}

func NewTodo() *Todo { return &Todo{} }

func (t *Todo) Name() string { return "todo" }

func (t *Todo) Description() string {
	return "Manages a session todo list. Actions: add, list, complete, remove."
}

func (t *Todo) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["add", "list", "complete", "remove"]},
			"text": {"type": "string", "description": "Item text, required for add"},
			"id": {"type": "string", "description": "Item id, required for complete and remove"}
		},
		"required": ["action"],
		"additionalProperties": false
	}`)
}

func (t *Todo) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Action string `json:"action"`
		Text   string `json:"text"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch in.Action {
	case "add":
		if in.Text == "" {
			return nil, &tools.InvalidInputError{Cause: fmt.Errorf("add requires text")}
		}
		item := TodoItem{ID: uuid.NewString(), Text: in.Text}
		t.items = append(t.items, item)
		return t.listResultLocked()

	case "list":
		return t.listResultLocked()

	case "complete":
		for i := range t.items {
			if t.items[i].ID == in.ID {
				t.items[i].Done = true
				return t.listResultLocked()
			}
		}
		return nil, &tools.NotFoundError{What: "todo item " + in.ID}

	case "remove":
		for i := range t.items {
			if t.items[i].ID == in.ID {
				t.items = append(t.items[:i], t.items[i+1:]...)
				return t.listResultLocked()
			}
		}
		return nil, &tools.NotFoundError{What: "todo item " + in.ID}

	default:
		return nil, &tools.InvalidInputError{Cause: fmt.Errorf("unknown action %q", in.Action)}
	}
}

func (t *Todo) listResultLocked() (*tools.Result, error) {
	raw, err := json.Marshal(struct {
		Items []TodoItem `json:"items"`
	}{Items: t.items})
	if err != nil {
		return nil, err
	}
	return &tools.Result{JSON: raw}, nil
}
