package models

import "time"

// ThinkingLevel is the configuration hint forwarded to backends as a
// reasoning effort, for models that support it.
type ThinkingLevel string

const (
	ThinkingOff    ThinkingLevel = "OFF"
	ThinkingLow    ThinkingLevel = "LOW"
	ThinkingMedium ThinkingLevel = "MEDIUM"
	ThinkingHigh   ThinkingLevel = "HIGH"
)

// ReasoningEffort maps the level to the backend knob. Off maps to empty.
func (l ThinkingLevel) ReasoningEffort() string {
	switch l {
	case ThinkingLow:
		return "low"
	case ThinkingMedium:
		return "medium"
	case ThinkingHigh:
		return "high"
	}
	return ""
}

// AgentConfig describes one agent: its identity, prompt, inference knobs,
// and tool access.
type AgentConfig struct {
	ID           string `json:"id" yaml:"id"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	Temperature     float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopP            float64 `json:"top_p,omitempty" yaml:"top_p"`
	MaxTokens       int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty" yaml:"reasoning_effort"`

	Provider string `json:"provider,omitempty" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`

	// EnabledTools is ordered; definitions are presented to the model in
	// this order.
	EnabledTools []string `json:"enabled_tools,omitempty" yaml:"enabled_tools"`

	// MaxToolConcurrency bounds parallel tool executions per turn.
	MaxToolConcurrency int `json:"max_tool_concurrency,omitempty" yaml:"max_tool_concurrency"`

	// RequireToolApproval gates side-effecting tools behind the approval
	// protocol. Nil means the default (true).
	RequireToolApproval *bool `json:"require_tool_approval,omitempty" yaml:"require_tool_approval"`

	// StrictToolValidation enables JSON-schema parameter validation.
	StrictToolValidation bool `json:"strict_tool_validation,omitempty" yaml:"strict_tool_validation"`
}

// DefaultMaxToolConcurrency is the tool fan-out bound when unset.
const DefaultMaxToolConcurrency = 3

// Concurrency returns the effective tool concurrency bound.
func (c *AgentConfig) Concurrency() int {
	if c.MaxToolConcurrency > 0 {
		return c.MaxToolConcurrency
	}
	return DefaultMaxToolConcurrency
}

// ApprovalRequired returns the effective approval gate (default true).
func (c *AgentConfig) ApprovalRequired() bool {
	if c.RequireToolApproval == nil {
		return true
	}
	return *c.RequireToolApproval
}

// ConversationMetadata is the per-conversation bookkeeping kept alongside
// the message log.
type ConversationMetadata struct {
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	Topic        string    `json:"topic,omitempty"`

	PromptTokens     int64   `json:"promptTokens,omitempty"`
	CompletionTokens int64   `json:"completionTokens,omitempty"`
	EstimatedCost    float64 `json:"estimatedCost,omitempty"`

	// SummarizedFrom holds the prior session id when this conversation
	// was produced by an auto-summary.
	SummarizedFrom string `json:"summarizedFrom,omitempty"`
}
