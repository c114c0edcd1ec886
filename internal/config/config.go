// Package config loads the runtime configuration from skein.yaml and
// applies defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skein-dev/skein/pkg/models"
)

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "skein.yaml"

// SessionConfig controls conversation persistence.
type SessionConfig struct {
	// Dir is the session directory holding memory.json and metadata.json.
	Dir string `yaml:"dir"`

	// MemPersist enables file-backed memory. Nil means the default (true).
	MemPersist *bool `yaml:"mem_persist"`
}

// Persist returns the effective persistence flag.
func (s SessionConfig) Persist() bool {
	if s.MemPersist == nil {
		return true
	}
	return *s.MemPersist
}

// ModelLimitOverride raises or lowers a model's known context window.
type ModelLimitOverride struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	ContextWindow int    `yaml:"context_window"`
}

// AuditConfig controls the sqlite tool event log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the full runtime configuration.
type Config struct {
	Agent    models.AgentConfig   `yaml:"agent"`
	Session  SessionConfig        `yaml:"session"`
	Thinking models.ThinkingLevel `yaml:"thinking"`

	// BypassTools overrides the approval bypass patterns.
	BypassTools []string `yaml:"bypass_tools"`

	ModelLimits []ModelLimitOverride `yaml:"model_limits"`
	Audit       AuditConfig          `yaml:"audit"`

	// Workspace is the root directory for the file and shell tools.
	Workspace string `yaml:"workspace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Agent: models.AgentConfig{
			ID:    "skein",
			Model: "gpt-4o-mini",
		},
		Thinking: models.ThinkingOff,
	}
	cfg.Normalize()
	return cfg
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills in defaults for anything the file left unset.
func (c *Config) Normalize() {
	if c.Agent.ID == "" {
		c.Agent.ID = "skein"
	}
	if c.Agent.MaxToolConcurrency <= 0 {
		c.Agent.MaxToolConcurrency = models.DefaultMaxToolConcurrency
	}
	if c.Thinking == "" {
		c.Thinking = models.ThinkingOff
	}
	if c.Agent.ReasoningEffort == "" {
		c.Agent.ReasoningEffort = c.Thinking.ReasoningEffort()
	}
	if c.Session.Dir == "" {
		c.Session.Dir = defaultSessionDir()
	}
	if c.Workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Workspace = wd
		} else {
			c.Workspace = "."
		}
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Session.Dir, "audit.db")
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".skein", "sessions")
	}
	return filepath.Join(home, ".skein", "sessions")
}
