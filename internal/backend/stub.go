package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/skein-dev/skein/pkg/models"
)

// StubTurn scripts one model response for the stub backend.
type StubTurn struct {
	Content   string
	ToolCalls []models.ToolCall
	Usage     models.Usage
	Err       error
}

// StubBackend replays scripted turns in order. It is the in-package fake
// used by orchestrator and runtime tests, and backs the CLI's offline
// mode. Safe for concurrent use; each call consumes one turn. When the
// script runs out, the last turn repeats.
type StubBackend struct {
	mu    sync.Mutex
	turns []StubTurn
	next  int

	// Requests records every params value received, for assertions.
	Requests []CompletionParams
}

func NewStubBackend(turns ...StubTurn) *StubBackend {
	return &StubBackend{turns: turns}
}

func (s *StubBackend) take(params CompletionParams) StubTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, params)
	if len(s.turns) == 0 {
		return StubTurn{Content: "ok"}
	}
	turn := s.turns[s.next]
	if s.next < len(s.turns)-1 {
		s.next++
	}
	return turn
}

func (s *StubBackend) Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	turn := s.take(params)
	if turn.Err != nil {
		return nil, turn.Err
	}
	return s.result(turn), nil
}

func (s *StubBackend) StreamComplete(ctx context.Context, params CompletionParams, handlers StreamHandlers) (*CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	turn := s.take(params)
	if turn.Err != nil {
		return nil, turn.Err
	}

	if handlers.OnChunk != nil && turn.Content != "" {
		// Split on word boundaries to exercise multi-chunk consumers.
		for _, word := range strings.SplitAfter(turn.Content, " ") {
			if word == "" {
				continue
			}
			handlers.OnChunk(word, nil)
		}
	}
	result := s.result(turn)
	if len(turn.ToolCalls) > 0 {
		result.ToolCalls = streamToolCalls(turn.ToolCalls)
	}
	if handlers.OnFinish != nil {
		var usage *models.Usage
		if turn.Usage != (models.Usage{}) {
			usage = turn.Usage.Clone()
		}
		handlers.OnFinish(result.StopReason, usage)
	}
	return result, nil
}

// streamToolCalls replays each scripted call as provider-style
// fragments (id and name first, argument continuations after) and
// merges them back through the accumulator, the same path a real
// streaming provider's deltas take.
func streamToolCalls(calls []models.ToolCall) []models.ToolCall {
	acc := NewToolCallAccumulator()
	for i, call := range calls {
		idx := i
		args := call.Arguments
		split := len(args) / 2
		acc.Add(ToolCallFragment{Index: &idx, ID: call.ID, Name: call.Name, Arguments: args[:split]})
		acc.Add(ToolCallFragment{Index: &idx, Arguments: args[split:]})
	}
	return acc.Calls()
}

func (s *StubBackend) result(turn StubTurn) *CompletionResult {
	stop := "stop"
	if len(turn.ToolCalls) > 0 {
		stop = "tool_calls"
	}
	return &CompletionResult{
		Content:    turn.Content,
		ToolCalls:  models.CloneToolCalls(turn.ToolCalls),
		Usage:      turn.Usage,
		StopReason: stop,
	}
}
