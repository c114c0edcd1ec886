// Package backend defines the port between the orchestrator and model
// providers. Concrete providers live behind ModelBackend; the runtime
// never speaks a vendor protocol directly.
package backend

import (
	"context"
	"errors"

	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/pkg/models"
)

// ErrNoBackend is returned when a turn is attempted without a configured
// backend.
var ErrNoBackend = errors.New("no model backend configured")

// CompletionParams is one model invocation.
type CompletionParams struct {
	Model        string
	SystemPrompt string

	// Messages is the full transcript for this invocation, oldest first.
	Messages []models.Message

	// Tools are the definitions exposed for function calling, in the
	// agent configuration's enabled order.
	Tools []tools.Definition

	Temperature     float64
	TopP            float64
	MaxTokens       int
	ReasoningEffort string
}

// CompletionResult is a completed model response.
type CompletionResult struct {
	Content   string
	ToolCalls []models.ToolCall
	Usage     models.Usage

	// StopReason is the provider's stop reason, normalized to
	// "stop", "tool_calls", "length", or "" when unknown.
	StopReason string
}

// StreamHandlers receives incremental output during a streaming
// completion. Any handler may be nil.
type StreamHandlers struct {
	// OnChunk receives assistant text deltas in arrival order. usage is
	// non-nil only when the provider attaches accounting to the delta.
	OnChunk func(delta string, usage *models.Usage)

	// OnReasoningChunk receives thinking deltas, kept separate from the
	// visible text stream.
	OnReasoningChunk func(delta string)

	// OnFinish fires once when the stream ends, before StreamComplete
	// returns. usage carries the final accounting when the provider
	// reports it with the stream terminator.
	OnFinish func(stopReason string, usage *models.Usage)
}

// ModelBackend produces completions.
type ModelBackend interface {
	Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error)
}

// StreamingBackend additionally supports incremental delivery. The
// returned result carries the same fields a non-streaming call would;
// tool call fragments are already merged.
type StreamingBackend interface {
	ModelBackend
	StreamComplete(ctx context.Context, params CompletionParams, handlers StreamHandlers) (*CompletionResult, error)
}
