package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnknownTool is returned by Validate for unregistered names.
var ErrUnknownTool = errors.New("tool not registered")

// Registry manages available tools with thread-safe registration and
// lookup. The set of registered tool names is persisted to a small
// key-value file so the enabled-tool list survives process restarts even
// before tools are re-registered.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*jsonschema.Schema
	known      map[string]time.Time

	statePath string
	logger    *slog.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// StatePath is the key-value file for registered-name persistence.
	// Empty disables persistence.
	StatePath string

	Logger *slog.Logger
}

// NewRegistry creates a registry, loading any persisted name state.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:      make(map[string]Tool),
		validators: make(map[string]*jsonschema.Schema),
		known:      make(map[string]time.Time),
		statePath:  opts.StatePath,
		logger:     logger,
	}
	r.loadState()
	return r
}

func (r *Registry) loadState() {
	if r.statePath == "" {
		return
	}
	raw, err := os.ReadFile(r.statePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to read tool registry state", "path", r.statePath, "error", err)
		}
		return
	}
	if err := json.Unmarshal(raw, &r.known); err != nil {
		r.logger.Warn("failed to decode tool registry state", "path", r.statePath, "error", err)
		r.known = make(map[string]time.Time)
	}
}

// persistState writes the known-name map atomically. Callers hold r.mu.
func (r *Registry) persistState() {
	if r.statePath == "" {
		return
	}
	raw, err := json.MarshalIndent(r.known, "", "  ")
	if err != nil {
		r.logger.Warn("failed to encode tool registry state", "error", err)
		return
	}
	dir := filepath.Dir(r.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("failed to create tool registry state dir", "path", dir, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.statePath)+".tmp-*")
	if err != nil {
		r.logger.Warn("failed to create temp tool registry state", "error", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err == nil {
		if err := tmp.Close(); err == nil {
			if err := os.Rename(tmpName, r.statePath); err != nil {
				os.Remove(tmpName)
				r.logger.Warn("failed to replace tool registry state", "error", err)
			}
			return
		}
	} else {
		tmp.Close()
	}
	os.Remove(tmpName)
}

// Register adds a tool, replacing any previous tool of the same name.
// The tool's schema is compiled for validation; an invalid schema is
// rejected.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return errors.New("tool name is required")
	}

	var validator *jsonschema.Schema
	if schema := tool.Schema(); len(schema) > 0 {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(name+".schema.json", strings.NewReader(string(schema))); err != nil {
			return fmt.Errorf("tool %s: add schema: %w", name, err)
		}
		compiled, err := compiler.Compile(name + ".schema.json")
		if err != nil {
			return fmt.Errorf("tool %s: compile schema: %w", name, err)
		}
		validator = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
	if validator != nil {
		r.validators[name] = validator
	} else {
		delete(r.validators, name)
	}
	r.known[name] = time.Now().UTC()
	r.persistState()
	return nil
}

// Unregister removes a tool. The persisted name state keeps the entry so
// the enabled-tool list remains stable across restarts.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.validators, name)
}

// Get returns a registered tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns currently registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownNames returns every name ever registered, including names restored
// from the persisted state file, sorted.
func (r *Registry) KnownNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.known))
	for name := range r.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns model-facing definitions for the requested names,
// preserving the caller's ordering. Unregistered names are skipped.
func (r *Registry) Definitions(enabled []string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(enabled))
	for _, name := range enabled {
		tool, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, Definition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return defs
}

// Validate checks arguments against the tool's declared schema. A tool
// without a schema validates trivially. Returns ErrUnknownTool for
// unregistered names.
func (r *Registry) Validate(name, arguments string) error {
	r.mu.RLock()
	_, registered := r.tools[name]
	validator := r.validators[name]
	r.mu.RUnlock()

	if !registered {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if validator == nil {
		return nil
	}

	var decoded any
	if arguments == "" {
		decoded = map[string]any{}
	} else if err := json.Unmarshal([]byte(arguments), &decoded); err != nil {
		return fmt.Errorf("tool %s: arguments are not valid JSON: %w", name, err)
	}
	if err := validator.Validate(decoded); err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}
	return nil
}
