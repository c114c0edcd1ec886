package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skein-dev/skein/internal/subagent"
	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/pkg/models"
)

// Delegate hands a task to a specialist sub-agent and reports its
// terminal status back to the model. The sub-agent runs on the shared
// registry and backend with its own memory; its tool activity is
// forwarded to the spawning turn's event stream.
type Delegate struct {
	manager *subagent.Manager
	config  models.AgentConfig
}

// NewDelegate creates the delegation tool. config is the base agent
// configuration for spawned sub-agents; the per-task instruction and
// specialist label arrive as call parameters.
func NewDelegate(manager *subagent.Manager, config models.AgentConfig) *Delegate {
	return &Delegate{manager: manager, config: config}
}

func (d *Delegate) Name() string { return "delegate" }

func (d *Delegate) Description() string {
	return "Delegates a task to a specialist sub-agent with isolated memory and returns its result summary."
}

func (d *Delegate) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"agent_type": {"type": "string", "description": "Specialist label, e.g. researcher"},
			"prompt": {"type": "string", "description": "Instruction for the sub-agent"},
			"share_context": {"type": "boolean", "description": "Seed the sub-agent with a copy of the conversation so far"},
			"timeout_ms": {"type": "integer", "description": "Task time limit in milliseconds"}
		},
		"required": ["agent_type", "prompt"],
		"additionalProperties": false
	}`)
}

// DelegateResult is the JSON payload returned to the model.
type DelegateResult struct {
	AgentID    string `json:"agent_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

func (d *Delegate) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		AgentType    string `json:"agent_type"`
		Prompt       string `json:"prompt"`
		ShareContext bool   `json:"share_context"`
		TimeoutMs    int64  `json:"timeout_ms"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}
	if in.AgentType == "" || in.Prompt == "" {
		return nil, &tools.InvalidInputError{Cause: fmt.Errorf("agent_type and prompt are required")}
	}

	env, _ := tools.DelegationEnvFromContext(ctx)
	res := d.manager.ExecuteTask(ctx, subagent.Task{
		Type:          in.AgentType,
		Prompt:        in.Prompt,
		Config:        d.config,
		ShareContext:  in.ShareContext,
		ParentHistory: env.History,
		TimeoutMs:     in.TimeoutMs,
	}, subagent.Parent{
		Sink:           env.Sink,
		ConversationID: env.ConversationID,
		MessageID:      env.MessageID,
		ToolCallID:     tools.ToolCallIDFromContext(ctx),
	})

	raw, err := json.Marshal(DelegateResult{
		AgentID:    res.AgentID,
		Status:     res.Status,
		Message:    res.Message,
		DurationMs: res.DurationMs,
	})
	if err != nil {
		return nil, err
	}
	return &tools.Result{JSON: raw, IsError: res.Status != subagent.StatusSuccess}, nil
}
