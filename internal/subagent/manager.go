// Package subagent runs delegated tasks on isolated sub-orchestrators:
// fresh memory, no approval gate, a depth cap, and a hard timeout. Tool
// activity inside the sub-agent is forwarded to the parent event stream
// under the SubAgent event types.
package subagent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skein-dev/skein/internal/backend"
	"github.com/skein-dev/skein/internal/conversation"
	"github.com/skein-dev/skein/internal/events"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/metrics"
	"github.com/skein-dev/skein/internal/orchestrator"
	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/pkg/models"
)

const (
	// MaxDelegationDepth bounds nested delegation chains.
	MaxDelegationDepth = 3

	// DefaultTimeout applies when a task names no budget.
	DefaultTimeout = 3_000_000 * time.Millisecond
)

// Task statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Task describes one delegated unit of work.
type Task struct {
	// Type labels the specialist (memory keys use it).
	Type string

	// Prompt is the instruction handed to the sub-agent.
	Prompt string

	// Config is the sub-agent's own agent configuration. The approval
	// requirement is forced off regardless of its value.
	Config models.AgentConfig

	// ShareContext seeds the sub-agent with a copy of ParentHistory.
	ShareContext  bool
	ParentHistory []models.Message

	// TimeoutMs bounds the task; zero means DefaultTimeout.
	TimeoutMs int64
}

// Result summarizes a finished task.
type Result struct {
	AgentID    string
	Status     string
	Message    string
	DurationMs int64
}

// Parent identifies the spawning turn. Sub-agent events are emitted on
// its sink, tagged with its conversation and message ids; ToolCallID is
// the parent tool call that requested the delegation.
type Parent struct {
	Sink           events.Sink
	ConversationID string
	MessageID      string
	ToolCallID     string
}

// Options configures a Manager.
type Options struct {
	Registry *tools.Registry
	Backend  backend.ModelBackend
	Logger   *slog.Logger
}

// Manager spawns sub-agents. The registry and backend are shared with
// the parent; memory, events, and metrics are per-task.
type Manager struct {
	registry *tools.Registry
	backend  backend.ModelBackend
	logger   *slog.Logger
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil {
		return nil, errors.New("subagent: tool registry is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("subagent: model backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: opts.Registry, backend: opts.Backend, logger: logger}, nil
}

// ExecuteTask runs one task to completion. SubAgent lifecycle and tool
// events go to the parent's sink, tagged with the parent's identity;
// parent.Sink may be nil. Depth and timeout violations surface as error
// results, never as errors.
func (m *Manager) ExecuteTask(ctx context.Context, task Task, parent Parent) *Result {
	agentID := uuid.NewString()

	depth := tools.DelegationDepthFromContext(ctx)
	if depth >= MaxDelegationDepth {
		return &Result{
			AgentID: agentID,
			Status:  StatusError,
			Message: "delegation depth exceeded",
		}
	}

	started := time.Now()
	em := events.NewEmitter(parent.Sink, parent.ConversationID, parent.MessageID)
	em.Emit(ctx, models.AgentEvent{
		Type: models.EventSubAgentStarted,
		SubAgent: &models.SubAgentPayload{
			AgentID:    agentID,
			AgentName:  task.Type,
			ToolCallID: parent.ToolCallID,
		},
	})

	result := m.run(ctx, task, em, agentID)
	result.AgentID = agentID
	result.DurationMs = time.Since(started).Milliseconds()

	em.Emit(context.WithoutCancel(ctx), models.AgentEvent{
		Type: models.EventSubAgentCompleted,
		SubAgent: &models.SubAgentPayload{
			AgentID:         agentID,
			AgentName:       task.Type,
			ToolCallID:      parent.ToolCallID,
			Status:          result.Status,
			ResultMessage:   result.Message,
			TotalDurationMs: result.DurationMs,
		},
	})
	return result
}

func (m *Manager) run(ctx context.Context, task Task, em *events.Emitter, agentID string) *Result {
	timeout := DefaultTimeout
	if task.TimeoutMs > 0 {
		timeout = time.Duration(task.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store, err := conversation.NewStore(memory.NewInMemoryStore(), "")
	if err != nil {
		return &Result{Status: StatusError, Message: err.Error()}
	}
	key := "agent:" + task.Type + ":" + agentID
	if task.ShareContext && len(task.ParentHistory) > 0 {
		if err := store.Memory().Set(ctx, key, models.CloneMessages(task.ParentHistory)); err != nil {
			return &Result{Status: StatusError, Message: err.Error()}
		}
	}

	config := task.Config
	noApproval := false
	config.RequireToolApproval = &noApproval

	child, err := orchestrator.New(orchestrator.Options{
		Config:        config,
		Conversations: store,
		Registry:      m.registry,
		Backend:       m.backend,
		Sink:          &forwardingSink{emitter: em, agentID: agentID},
		Metrics:       metrics.NewSessionMetrics(nil, nil),
		Logger:        m.logger.With("subagent_id", agentID, "subagent_type", task.Type),
	})
	if err != nil {
		return &Result{Status: StatusError, Message: err.Error()}
	}

	childCtx := tools.WithDelegationDepth(ctx, tools.DelegationDepthFromContext(ctx)+1)
	res, err := child.Send(childCtx, orchestrator.TextPayload(task.Prompt), orchestrator.SendOptions{
		ConversationID: key,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return &Result{Status: StatusTimeout, Message: "task timed out"}
		}
		return &Result{Status: StatusError, Message: err.Error()}
	}
	return &Result{Status: StatusSuccess, Message: res.Content}
}

// forwardingSink selectively relays a sub-agent's tool activity to the
// parent stream. All other child events stay internal.
type forwardingSink struct {
	emitter *events.Emitter
	agentID string
}

func (s *forwardingSink) Send(ctx context.Context, event models.AgentEvent) {
	switch event.Type {
	case models.EventToolCalls:
		if event.Calls == nil {
			return
		}
		for _, call := range event.Calls.ToolCalls {
			s.emitter.Emit(ctx, models.AgentEvent{
				Type: models.EventSubAgentToolCall,
				SubAgent: &models.SubAgentPayload{
					AgentID:       s.agentID,
					ToolCallID:    call.ID,
					ToolName:      call.Name,
					ToolArguments: call.Arguments,
				},
			})
		}
	case models.EventToolResult:
		if event.Result == nil {
			return
		}
		s.emitter.Emit(ctx, models.AgentEvent{
			Type: models.EventSubAgentToolResult,
			SubAgent: &models.SubAgentPayload{
				AgentID:      s.agentID,
				ToolCallID:   event.Result.ID,
				ToolName:     event.Result.Name,
				DurationMs:   event.Result.DurationMs,
				ResultStatus: event.Result.Status,
			},
		})
	}
}
