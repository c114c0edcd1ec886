package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/skein-dev/skein/internal/tools"
)

const maxFileReadBytes = 256 * 1024

// resolvePath confines a user-supplied path to the tool's root directory.
func resolvePath(root, path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", path)
	}
	full := filepath.Join(root, filepath.Clean(path))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return full, nil
}

// FileRead reads a file under its root directory.
type FileRead struct {
	root string
}

func NewFileRead(root string) *FileRead { return &FileRead{root: root} }

func (t *FileRead) Name() string { return "file_read" }

func (t *FileRead) Description() string {
	return "Reads a text file from the workspace. Paths are relative to the workspace root."
}

func (t *FileRead) ReadOnly() bool { return true }

func (t *FileRead) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative file path"}
		},
		"required": ["path"],
		"additionalProperties": false
	}`)
}

func (t *FileRead) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}

	full, err := resolvePath(t.root, in.Path)
	if err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &tools.NotFoundError{What: in.Path}
		}
		return nil, err
	}
	if len(raw) > maxFileReadBytes {
		raw = raw[:maxFileReadBytes]
		return &tools.Result{Content: string(raw) + "\n[truncated]"}, nil
	}
	return &tools.Result{Content: string(raw)}, nil
}

// FileWrite writes a file under its root directory, creating parent
// directories as needed. An approval edit instruction, when present,
// replaces the target path.
type FileWrite struct {
	root string
}

func NewFileWrite(root string) *FileWrite { return &FileWrite{root: root} }

func (t *FileWrite) Name() string { return "file_write" }

func (t *FileWrite) Description() string {
	return "Writes a text file in the workspace, creating it if needed."
}

func (t *FileWrite) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative file path"},
			"content": {"type": "string", "description": "Full file content to write"}
		},
		"required": ["path", "content"],
		"additionalProperties": false
	}`)
}

func (t *FileWrite) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}

	if edited, ok := tools.EditInstructionFromContext(ctx); ok {
		in.Path = edited
	}

	full, err := resolvePath(t.root, in.Path)
	if err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(full, []byte(in.Content), 0o644); err != nil {
		return nil, err
	}
	return &tools.Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}
