package tools

import (
	"context"

	"github.com/skein-dev/skein/internal/events"
	"github.com/skein-dev/skein/pkg/models"
)

type editInstructionKey struct{}
type delegationDepthKey struct{}
type toolCallIDKey struct{}
type delegationEnvKey struct{}

// WithEditInstruction attaches an approval-time edit instruction for
// tools to interpret (e.g. adjust a file path before executing).
func WithEditInstruction(ctx context.Context, instruction string) context.Context {
	if instruction == "" {
		return ctx
	}
	return context.WithValue(ctx, editInstructionKey{}, instruction)
}

// EditInstructionFromContext returns the pending edit instruction, if any.
func EditInstructionFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(editInstructionKey{}).(string)
	return v, ok && v != ""
}

// WithDelegationDepth records how deep in the sub-agent chain the current
// execution runs. Tool calls made by a sub-agent inherit depth+1.
func WithDelegationDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, delegationDepthKey{}, depth)
}

// DelegationDepthFromContext returns the current delegation depth
// (zero at the root orchestrator).
func DelegationDepthFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(delegationDepthKey{}).(int); ok {
		return v
	}
	return 0
}

// WithToolCallID records the id of the tool call being executed. The
// executor sets it so tools that spawn sub-agents can correlate their
// events with the originating call.
func WithToolCallID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, toolCallIDKey{}, id)
}

// ToolCallIDFromContext returns the executing call's id, or "".
func ToolCallIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(toolCallIDKey{}).(string); ok {
		return v
	}
	return ""
}

// DelegationEnv is the turn state a delegation tool needs to spawn
// sub-agents against the parent's event stream. History is a copy of
// the parent transcript at tool-execution time.
type DelegationEnv struct {
	Sink           events.Sink
	ConversationID string
	MessageID      string
	History        []models.Message
}

// WithDelegationEnv attaches the spawning turn's environment for tools
// executed within it.
func WithDelegationEnv(ctx context.Context, env DelegationEnv) context.Context {
	return context.WithValue(ctx, delegationEnvKey{}, env)
}

// DelegationEnvFromContext returns the current turn's delegation
// environment. The zero value is returned outside a turn.
func DelegationEnvFromContext(ctx context.Context) (DelegationEnv, bool) {
	env, ok := ctx.Value(delegationEnvKey{}).(DelegationEnv)
	return env, ok
}
