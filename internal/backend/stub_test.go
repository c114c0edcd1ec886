package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/skein-dev/skein/pkg/models"
)

func TestStubReplaysTurnsInOrder(t *testing.T) {
	stub := NewStubBackend(
		StubTurn{Content: "first"},
		StubTurn{Content: "second"},
	)

	res, err := stub.Complete(context.Background(), CompletionParams{})
	if err != nil || res.Content != "first" {
		t.Fatalf("turn 1: %v %+v", err, res)
	}
	res, _ = stub.Complete(context.Background(), CompletionParams{})
	if res.Content != "second" {
		t.Fatalf("turn 2: %+v", res)
	}
	// Script exhausted: last turn repeats.
	res, _ = stub.Complete(context.Background(), CompletionParams{})
	if res.Content != "second" {
		t.Fatalf("turn 3: %+v", res)
	}
}

func TestStubStreamDeliversChunksThenFinish(t *testing.T) {
	stub := NewStubBackend(StubTurn{
		Content: "hello streaming world",
		Usage:   models.Usage{PromptTokens: 4, CompletionTokens: 3, TotalTokens: 7},
	})

	var chunks []string
	var finished string
	var finishUsage *models.Usage
	res, err := stub.StreamComplete(context.Background(), CompletionParams{}, StreamHandlers{
		OnChunk: func(delta string, usage *models.Usage) { chunks = append(chunks, delta) },
		OnFinish: func(stop string, usage *models.Usage) {
			finished = stop
			finishUsage = usage
		},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	if joined := strings.Join(chunks, ""); joined != res.Content {
		t.Fatalf("chunks %q != content %q", joined, res.Content)
	}
	if finished != "stop" {
		t.Fatalf("finish stop reason = %q", finished)
	}
	if finishUsage == nil || finishUsage.TotalTokens != 7 {
		t.Fatalf("finish usage = %+v", finishUsage)
	}
}

func TestStubStreamMergesToolCallFragments(t *testing.T) {
	scripted := []models.ToolCall{
		{ID: "c1", Name: "grep", Arguments: `{"pattern":"alpha beta"}`},
		{ID: "c2", Name: "ls", Arguments: `{}`},
	}
	stub := NewStubBackend(StubTurn{ToolCalls: scripted})

	res, err := stub.StreamComplete(context.Background(), CompletionParams{}, StreamHandlers{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(res.ToolCalls) != len(scripted) {
		t.Fatalf("tool calls = %+v", res.ToolCalls)
	}
	for i, call := range res.ToolCalls {
		if call.ID != scripted[i].ID || call.Name != scripted[i].Name {
			t.Fatalf("call %d = %+v", i, call)
		}
		// Argument text survives fragmenting byte-exact.
		if call.Arguments != scripted[i].Arguments {
			t.Fatalf("call %d arguments = %q", i, call.Arguments)
		}
	}
	if res.StopReason != "tool_calls" {
		t.Fatalf("stop reason = %q", res.StopReason)
	}
}

func TestStubToolCallTurnSetsStopReason(t *testing.T) {
	stub := NewStubBackend(StubTurn{
		ToolCalls: []models.ToolCall{{ID: "c1", Name: "reverse_text", Arguments: `{"text":"a"}`}},
	})
	res, _ := stub.Complete(context.Background(), CompletionParams{})
	if res.StopReason != "tool_calls" || len(res.ToolCalls) != 1 {
		t.Fatalf("result = %+v", res)
	}
}
