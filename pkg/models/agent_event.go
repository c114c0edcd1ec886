package models

import (
	"time"
)

// AgentEvent is the unified progress event emitted to presentation layers.
//
// Design follows a single Type discriminator with optional payload
// pointers; exactly one payload is non-nil for a given Type. Sequence is
// monotonic within a turn so consumers can re-order across goroutines.
type AgentEvent struct {
	Version  int            `json:"version"`
	Type     AgentEventType `json:"type"`
	Time     time.Time      `json:"time"`
	Sequence uint64         `json:"seq"`

	// ConversationID identifies the conversation the event belongs to.
	ConversationID string `json:"conversation_id,omitempty"`

	// MessageID identifies the turn (allocated at Send entry).
	MessageID string `json:"message_id,omitempty"`

	Started   *MessageStartedPayload `json:"started,omitempty"`
	Chunk     *ChunkPayload          `json:"chunk,omitempty"`
	Finish    *StreamFinishPayload   `json:"finish,omitempty"`
	Calls     *ToolCallsPayload      `json:"calls,omitempty"`
	Result    *ToolExecutionResult   `json:"result,omitempty"`
	Assistant *AssistantPayload      `json:"assistant,omitempty"`
	Memory    *MemoryPayload         `json:"memory,omitempty"`
	SubAgent  *SubAgentPayload       `json:"subagent,omitempty"`
	Done      *DonePayload           `json:"done,omitempty"`
	Error     *ErrorPayload          `json:"error,omitempty"`
	Notice    *NoticePayload         `json:"notice,omitempty"`
}

// AgentEventVersion is the current event schema version.
const AgentEventVersion = 1

// AgentEventType identifies the kind of agent event.
type AgentEventType string

const (
	EventMessageStarted       AgentEventType = "message.started"
	EventAssistantChunk       AgentEventType = "assistant.chunk"
	EventReasoningChunk       AgentEventType = "reasoning.chunk"
	EventStreamFinish         AgentEventType = "stream.finish"
	EventToolCalls            AgentEventType = "tool.calls"
	EventToolApprovalRequired AgentEventType = "tool.approval_required"
	EventToolResult           AgentEventType = "tool.result"
	EventAssistantMessage     AgentEventType = "assistant.message"
	EventMemoryAppended       AgentEventType = "memory.appended"
	EventSubAgentStarted      AgentEventType = "subagent.started"
	EventSubAgentToolCall     AgentEventType = "subagent.tool_call"
	EventSubAgentToolResult   AgentEventType = "subagent.tool_result"
	EventSubAgentCompleted    AgentEventType = "subagent.completed"
	EventNoticeLine           AgentEventType = "notice.line"
	EventDone                 AgentEventType = "done"
	EventError                AgentEventType = "error"
)

// AgentEventTypes is the closed list of declared event types.
var AgentEventTypes = []AgentEventType{
	EventMessageStarted,
	EventAssistantChunk,
	EventReasoningChunk,
	EventStreamFinish,
	EventToolCalls,
	EventToolApprovalRequired,
	EventToolResult,
	EventAssistantMessage,
	EventMemoryAppended,
	EventSubAgentStarted,
	EventSubAgentToolCall,
	EventSubAgentToolResult,
	EventSubAgentCompleted,
	EventNoticeLine,
	EventDone,
	EventError,
}

// Valid reports whether the event type is declared.
func (t AgentEventType) Valid() bool {
	for _, known := range AgentEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Terminal reports whether this event type ends a turn's stream.
func (t AgentEventType) Terminal() bool {
	return t == EventDone || t == EventError
}

// MessageStartedPayload announces a new turn.
type MessageStartedPayload struct {
	// UserContent is the display-resolved user text.
	UserContent string `json:"user_content"`

	// Enhanced holds the reminder segments injected ahead of the text.
	Enhanced []string `json:"enhanced,omitempty"`

	// ToolNames enumerates the tools enabled for this turn, in order.
	ToolNames []string `json:"tool_names,omitempty"`
}

// ChunkPayload is one streamed text or reasoning delta.
type ChunkPayload struct {
	Delta string `json:"delta"`
	Usage *Usage `json:"usage,omitempty"`
}

// StreamFinishPayload closes a streamed completion.
type StreamFinishPayload struct {
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// ToolCallsPayload carries proposed tool calls. ApprovalID is set only on
// tool.approval_required events.
type ToolCallsPayload struct {
	ToolCalls  []ToolCall `json:"tool_calls"`
	Usage      *Usage     `json:"usage,omitempty"`
	ApprovalID string     `json:"approval_id,omitempty"`
}

// AssistantPayload carries full assistant content (final or interim).
type AssistantPayload struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// MemoryPayload reports messages appended to conversation memory.
type MemoryPayload struct {
	Delta []Message `json:"delta"`
}

// SubAgentPayload describes sub-agent lifecycle and tool activity.
type SubAgentPayload struct {
	AgentID         string       `json:"agent_id"`
	AgentName       string       `json:"agent_name,omitempty"`
	ToolCallID      string       `json:"tool_call_id,omitempty"`
	ToolName        string       `json:"tool_name,omitempty"`
	ToolArguments   string       `json:"tool_arguments,omitempty"`
	DurationMs      int64        `json:"duration_ms,omitempty"`
	Status          string       `json:"status,omitempty"`
	ResultStatus    ResultStatus `json:"result_status,omitempty"`
	ResultMessage   string       `json:"result_message,omitempty"`
	TotalDurationMs int64        `json:"total_duration_ms,omitempty"`
}

// DonePayload terminates a successful turn.
type DonePayload struct {
	ResponseTimeMs int64  `json:"response_time_ms"`
	Usage          *Usage `json:"usage,omitempty"`
}

// ErrorPayload terminates a failed turn.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NoticePayload is a human-readable status line (context window warnings,
// auto-summary notices).
type NoticePayload struct {
	Line string `json:"line"`
}
