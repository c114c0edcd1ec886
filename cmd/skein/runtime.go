package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/skein-dev/skein/internal/audit"
	"github.com/skein-dev/skein/internal/backend"
	"github.com/skein-dev/skein/internal/config"
	"github.com/skein-dev/skein/internal/conversation"
	"github.com/skein-dev/skein/internal/events"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/metrics"
	"github.com/skein-dev/skein/internal/orchestrator"
	"github.com/skein-dev/skein/internal/subagent"
	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/internal/tools/builtin"
)

// Runtime wires the runtime components together. It is constructed
// explicitly per invocation; there is no global instance.
type Runtime struct {
	Config        *config.Config
	Conversations *conversation.Store
	Registry      *tools.Registry
	Orchestrator  *orchestrator.Orchestrator
	SubAgents     *subagent.Manager
	Audit         *audit.Store
	Logger        *slog.Logger
}

// newRuntime builds a runtime from configuration. The model backend is
// the offline stub unless a provider integration replaces it; vendor
// transports plug in behind the backend port.
func newRuntime(cfg *config.Config, sink events.Sink) (*Runtime, error) {
	logger := slog.Default()

	var mem memory.Store
	sessionDir := ""
	if cfg.Session.Persist() {
		fileStore, err := memory.OpenFileStore(cfg.Session.Dir)
		if err != nil {
			return nil, fmt.Errorf("open session memory: %w", err)
		}
		mem = fileStore
		sessionDir = cfg.Session.Dir
	} else {
		mem = memory.NewInMemoryStore()
	}

	conversations, err := conversation.NewStore(mem, sessionDir)
	if err != nil {
		return nil, err
	}

	registryState := ""
	if sessionDir != "" {
		registryState = filepath.Join(sessionDir, "tools.json")
	}
	registry := tools.NewRegistry(tools.RegistryOptions{StatePath: registryState, Logger: logger})

	be := backend.NewStubBackend()
	subAgents, err := subagent.NewManager(subagent.Options{
		Registry: registry,
		Backend:  be,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	for _, tool := range []tools.Tool{
		builtin.NewReverseText(),
		builtin.NewTodo(),
		builtin.NewFileRead(cfg.Workspace),
		builtin.NewFileWrite(cfg.Workspace),
		builtin.NewShell(cfg.Workspace),
		builtin.NewDelegate(subAgents, cfg.Agent),
	} {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register %s: %w", tool.Name(), err)
		}
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
	}

	limits := metrics.NewModelLimits()
	for _, o := range cfg.ModelLimits {
		limits.Set(o.Provider, o.Model, o.ContextWindow)
	}
	collector := metrics.NewCollector(nil)
	sessionMetrics := metrics.NewSessionMetrics(limits, metrics.NewCostTable())

	orch, err := orchestrator.New(orchestrator.Options{
		Config:        cfg.Agent,
		Conversations: conversations,
		Registry:      registry,
		Backend:       be,
		Sink:          sink,
		Reminders:     orchestrator.DateReminder(),
		Metrics:       sessionMetrics,
		Collector:     collector,
		Estimator:     metrics.NewTokenEstimator(),
		Audit:         auditStore,
		Bypass:        orchestrator.NewBypassSet(cfg.BypassTools, registry),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:        cfg,
		Conversations: conversations,
		Registry:      registry,
		Orchestrator:  orch,
		SubAgents:     subAgents,
		Audit:         auditStore,
		Logger:        logger,
	}, nil
}

// Close releases runtime resources.
func (r *Runtime) Close() {
	if r.Audit != nil {
		r.Audit.Close()
	}
}
