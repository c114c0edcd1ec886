// Package builtin provides the tools shipped with the runtime: a text
// reverser, a todo list, file access, and a shell runner.
package builtin

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/skein-dev/skein/internal/tools"
)

// ReverseText reverses the runes of its input. Side-effect free.
type ReverseText struct{}

func NewReverseText() *ReverseText { return &ReverseText{} }

func (t *ReverseText) Name() string { return "reverse_text" }

func (t *ReverseText) Description() string {
	return "Reverses the characters of the given text."
}

func (t *ReverseText) ReadOnly() bool { return true }

func (t *ReverseText) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "Text to reverse"}
		},
		"required": ["text"],
		"additionalProperties": false
	}`)
}

func (t *ReverseText) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}
	if in.Text == "" {
		return nil, &tools.InvalidInputError{Cause: errors.New("text is required")}
	}

	runes := []rune(in.Text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return &tools.Result{Content: string(runes)}, nil
}
