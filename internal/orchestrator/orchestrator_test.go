package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skein-dev/skein/internal/backend"
	"github.com/skein-dev/skein/internal/conversation"
	"github.com/skein-dev/skein/internal/events"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/pkg/models"
)

func boolp(b bool) *bool { return &b }

// testTool is the in-package tool fake.
type testTool struct {
	name     string
	readOnly bool
	execute  func(ctx context.Context, params json.RawMessage) (*tools.Result, error)
}

func (t *testTool) Name() string             { return t.name }
func (t *testTool) Description() string      { return "test tool " + t.name }
func (t *testTool) Schema() json.RawMessage  { return nil }
func (t *testTool) ReadOnly() bool           { return t.readOnly }
func (t *testTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	if t.execute == nil {
		return &tools.Result{Content: "ok"}, nil
	}
	return t.execute(ctx, params)
}

type fixture struct {
	orch     *Orchestrator
	store    *conversation.Store
	registry *tools.Registry
	recorder *events.Recorder
}

func newFixture(t *testing.T, be backend.ModelBackend, cfg models.AgentConfig) *fixture {
	t.Helper()
	store, err := conversation.NewStore(memory.NewInMemoryStore(), "")
	if err != nil {
		t.Fatalf("conversation store: %v", err)
	}
	registry := tools.NewRegistry(tools.RegistryOptions{})
	recorder := events.NewRecorder()
	orch, err := New(Options{
		Config:        cfg,
		Conversations: store,
		Registry:      registry,
		Backend:       be,
		Sink:          recorder,
	})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return &fixture{orch: orch, store: store, registry: registry, recorder: recorder}
}

func eventTypes(recorded []models.AgentEvent) []models.AgentEventType {
	out := make([]models.AgentEventType, len(recorded))
	for i, e := range recorded {
		out[i] = e.Type
	}
	return out
}

func TestPureTextTurn(t *testing.T) {
	fx := newFixture(t, backend.NewStubBackend(backend.StubTurn{Content: "Hi!"}), models.AgentConfig{Model: "stub"})

	res, err := fx.orch.Send(context.Background(), TextPayload("Hello"), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Content != "Hi!" {
		t.Fatalf("content = %q", res.Content)
	}

	recorded := fx.recorder.Events()
	var seq []models.AgentEventType
	for _, e := range recorded {
		if e.Type == models.EventMemoryAppended {
			continue
		}
		seq = append(seq, e.Type)
	}
	want := []models.AgentEventType{models.EventMessageStarted, models.EventAssistantMessage, models.EventDone}
	if len(seq) != len(want) {
		t.Fatalf("events = %v", seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("events = %v", seq)
		}
	}

	history, _ := fx.store.History(context.Background(), DefaultConversationID)
	if len(history) != 2 {
		t.Fatalf("history = %d messages", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content.Text != "Hello" {
		t.Fatalf("user message = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content.Text != "Hi!" {
		t.Fatalf("assistant message = %+v", history[1])
	}
	if history[1].ID != res.MessageID {
		t.Fatal("final assistant id must equal the turn's message id")
	}
}

func TestReadOnlyToolBypassesApproval(t *testing.T) {
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c1", Name: "reverse_text", Arguments: `{"text":"abc"}`}}},
		backend.StubTurn{Content: "Reversed: cba"},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})
	fx.registry.Register(&testTool{name: "reverse_text", readOnly: true, execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		var in struct {
			Text string `json:"text"`
		}
		json.Unmarshal(params, &in)
		runes := []rune(in.Text)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return &tools.Result{Content: string(runes)}, nil
	}})

	res, err := fx.orch.Send(context.Background(), TextPayload("reverse abc"), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Content != "Reversed: cba" {
		t.Fatalf("content = %q", res.Content)
	}

	if approvals := fx.recorder.OfType(models.EventToolApprovalRequired); len(approvals) != 0 {
		t.Fatal("read-only tool must not require approval")
	}
	toolResults := fx.recorder.OfType(models.EventToolResult)
	if len(toolResults) != 1 || toolResults[0].Result.Result != "cba" {
		t.Fatalf("tool results = %+v", toolResults)
	}

	history, _ := fx.store.History(context.Background(), DefaultConversationID)
	// user, assistant+tool_calls, tool, final assistant
	if len(history) != 4 {
		t.Fatalf("history = %d messages", len(history))
	}
	if history[2].Role != models.RoleTool || history[2].ToolCallID != "c1" {
		t.Fatalf("tool message = %+v", history[2])
	}
}

func TestToolDenialRecordsDenialTurn(t *testing.T) {
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c1", Name: "file_edit", Arguments: `{"path":"x"}`}}},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub", RequireToolApproval: boolp(true)})
	fx.registry.Register(&testTool{name: "file_edit"})

	// Deny as soon as the approval request appears on the stream.
	denier := events.SinkFunc(func(ctx context.Context, e models.AgentEvent) {
		if e.Type == models.EventToolApprovalRequired {
			fx.orch.HandleToolApproval(e.Calls.ApprovalID, DecisionDeny, nil, "")
		}
	})
	fx.orch.SetSink(events.NewMultiSink(fx.recorder, denier))

	res, err := fx.orch.Send(context.Background(), TextPayload("edit the file"), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Content), "denied") {
		t.Fatalf("content = %q", res.Content)
	}

	approvals := fx.recorder.OfType(models.EventToolApprovalRequired)
	if len(approvals) != 1 || approvals[0].Calls.ApprovalID == "" {
		t.Fatalf("approval events = %+v", approvals)
	}

	history, _ := fx.store.History(context.Background(), DefaultConversationID)
	last := history[len(history)-1]
	if last.Role != models.RoleTool || last.Status != models.StatusError {
		t.Fatalf("last message = %+v", last)
	}
	if reason, ok := last.ErrorReasonOf(); !ok || reason != models.ReasonDenied {
		t.Fatalf("error reason = %v %v", reason, ok)
	}
}

func TestApproveSubsetExecutesOnlyApprovedAndDeniesRest(t *testing.T) {
	calls := []models.ToolCall{
		{ID: "c1", Name: "shell", Arguments: `{"command":"a"}`},
		{ID: "c2", Name: "shell", Arguments: `{"command":"b"}`},
	}
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: calls},
		backend.StubTurn{Content: "done"},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	var mu sync.Mutex
	var executed []string
	fx.registry.Register(&testTool{name: "shell", execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		mu.Lock()
		executed = append(executed, tools.ToolCallIDFromContext(ctx))
		mu.Unlock()
		return &tools.Result{Content: "ok"}, nil
	}})

	approver := events.SinkFunc(func(ctx context.Context, e models.AgentEvent) {
		if e.Type == models.EventToolApprovalRequired {
			fx.orch.HandleToolApproval(e.Calls.ApprovalID, DecisionApprove, calls[:1], "")
		}
	})
	fx.orch.SetSink(events.NewMultiSink(fx.recorder, approver))

	if _, err := fx.orch.Send(context.Background(), TextPayload("run both"), SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(executed) != 1 || executed[0] != "c1" {
		t.Fatalf("executed = %v", executed)
	}

	// The omitted call still gets a result: denied, not dangling.
	results := map[string]*models.ToolExecutionResult{}
	for _, e := range fx.recorder.OfType(models.EventToolResult) {
		results[e.Result.ID] = e.Result
	}
	if len(results) != 2 {
		t.Fatalf("tool results = %+v", results)
	}
	if results["c1"].Status != models.StatusSuccess {
		t.Fatalf("c1 = %+v", results["c1"])
	}
	if results["c2"].Status != models.StatusError || results["c2"].Reason() != models.ReasonDenied {
		t.Fatalf("c2 = %+v", results["c2"])
	}

	// Every announced call has a tool message in memory.
	history, _ := fx.store.History(context.Background(), DefaultConversationID)
	byCall := map[string]models.Message{}
	for _, msg := range history {
		if msg.Role == models.RoleTool {
			byCall[msg.ToolCallID] = msg
		}
	}
	if len(byCall) != 2 {
		t.Fatalf("tool messages = %+v", byCall)
	}
	c2Msg := byCall["c2"]
	if reason, ok := c2Msg.ErrorReasonOf(); !ok || reason != models.ReasonDenied {
		t.Fatalf("c2 message = %+v", byCall["c2"])
	}
}

func TestEditDecisionReachesTool(t *testing.T) {
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c1", Name: "shell", Arguments: `{"command":"rm -rf /"}`}}},
		backend.StubTurn{Content: "done"},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	var seen string
	fx.registry.Register(&testTool{name: "shell", execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		seen, _ = tools.EditInstructionFromContext(ctx)
		return &tools.Result{Content: "ok"}, nil
	}})

	editor := events.SinkFunc(func(ctx context.Context, e models.AgentEvent) {
		if e.Type == models.EventToolApprovalRequired {
			fx.orch.HandleToolApproval(e.Calls.ApprovalID, DecisionEdit, nil, "ls instead")
		}
	})
	fx.orch.SetSink(events.NewMultiSink(fx.recorder, editor))

	if _, err := fx.orch.Send(context.Background(), TextPayload("clean up"), SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if seen != "ls instead" {
		t.Fatalf("edit instruction seen by tool = %q", seen)
	}
}

func TestStrictValidationFeedsFailureBack(t *testing.T) {
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c1", Name: "typed", Arguments: `{"n":"not a number"}`}}},
		backend.StubTurn{Content: "recovered"},
	)
	fx := newFixture(t, be, models.AgentConfig{
		Model:                "stub",
		RequireToolApproval:  boolp(false),
		StrictToolValidation: true,
	})

	executed := false
	typed := &testTool{name: "typed", execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		executed = true
		return &tools.Result{Content: "ok"}, nil
	}}
	fx.registry.Register(typed)
	// Attach a schema requiring a numeric field.
	fx.registry.Register(&schemaTool{testTool: typed, schema: `{
		"type":"object",
		"properties":{"n":{"type":"integer"}},
		"required":["n"]
	}`})

	res, err := fx.orch.Send(context.Background(), TextPayload("go"), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if executed {
		t.Fatal("validation failure must not execute the tool")
	}
	if res.Content != "recovered" {
		t.Fatalf("content = %q", res.Content)
	}

	toolResults := fx.recorder.OfType(models.EventToolResult)
	if len(toolResults) != 1 || toolResults[0].Result.Reason() != models.ReasonValidationFailed {
		t.Fatalf("tool results = %+v", toolResults)
	}
}

// schemaTool wraps a testTool with a declared schema.
type schemaTool struct {
	*testTool
	schema string
}

func (t *schemaTool) Schema() json.RawMessage { return json.RawMessage(t.schema) }

func TestBatchedToolConcurrencyBoundsTurnTime(t *testing.T) {
	sleepCalls := []models.ToolCall{
		{ID: "c1", Name: "sleep", Arguments: "{}"},
		{ID: "c2", Name: "sleep", Arguments: "{}"},
		{ID: "c3", Name: "sleep", Arguments: "{}"},
	}
	newSleepFixture := func(concurrency int) *fixture {
		be := backend.NewStubBackend(
			backend.StubTurn{ToolCalls: sleepCalls},
			backend.StubTurn{Content: "done"},
		)
		fx := newFixture(t, be, models.AgentConfig{
			Model:               "stub",
			RequireToolApproval: boolp(false),
			MaxToolConcurrency:  concurrency,
		})
		fx.registry.Register(&testTool{name: "sleep", execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return &tools.Result{Content: "slept"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}})
		return fx
	}

	fx := newSleepFixture(3)
	start := time.Now()
	if _, err := fx.orch.Send(context.Background(), TextPayload("sleep"), SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 400*time.Millisecond {
		t.Fatalf("concurrency 3 took %v", elapsed)
	}

	fx = newSleepFixture(1)
	start = time.Now()
	if _, err := fx.orch.Send(context.Background(), TextPayload("sleep"), SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if elapsed := time.Since(start); elapsed <= 600*time.Millisecond {
		t.Fatalf("concurrency 1 took %v", elapsed)
	}
}

// cancellingBackend cancels its context after the third chunk.
type cancellingBackend struct {
	cancel context.CancelFunc
}

func (b *cancellingBackend) Complete(ctx context.Context, params backend.CompletionParams) (*backend.CompletionResult, error) {
	return nil, errors.New("streaming only")
}

func (b *cancellingBackend) StreamComplete(ctx context.Context, params backend.CompletionParams, handlers backend.StreamHandlers) (*backend.CompletionResult, error) {
	for i := 0; i < 6; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		handlers.OnChunk("chunk ", nil)
		if i == 2 {
			b.cancel()
		}
	}
	return &backend.CompletionResult{Content: "never"}, nil
}

func TestCancellationDuringStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	be := &cancellingBackend{cancel: cancel}
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	_, err := fx.orch.Send(ctx, TextPayload("stream this"), SendOptions{Stream: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}

	recorded := fx.recorder.Events()
	last := recorded[len(recorded)-1]
	if last.Type != models.EventError || last.Error.Error != "aborted" {
		t.Fatalf("last event = %+v", last)
	}
	if chunks := fx.recorder.OfType(models.EventAssistantChunk); len(chunks) != 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	history, _ := fx.store.History(context.Background(), DefaultConversationID)
	if len(history) != 1 || history[0].Role != models.RoleUser {
		t.Fatalf("history = %+v", history)
	}
}

func TestIterationCapFailsTurn(t *testing.T) {
	// A backend that always demands another tool call never converges.
	be := backend.NewStubBackend(backend.StubTurn{
		ToolCalls: []models.ToolCall{{ID: "c", Name: "noop", Arguments: "{}"}},
	})
	fx := newFixture(t, be, models.AgentConfig{Model: "stub", RequireToolApproval: boolp(false)})
	fx.registry.Register(&testTool{name: "noop"})

	_, err := fx.orch.Send(context.Background(), TextPayload("loop"), SendOptions{})
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("err = %v", err)
	}
	recorded := fx.recorder.Events()
	if last := recorded[len(recorded)-1]; last.Type != models.EventError {
		t.Fatalf("last event = %+v", last)
	}
}

func TestStreamedChunksConcatenateToContent(t *testing.T) {
	be := backend.NewStubBackend(backend.StubTurn{Content: "alpha beta gamma"})
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	res, err := fx.orch.Send(context.Background(), TextPayload("stream"), SendOptions{Stream: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var joined strings.Builder
	for _, e := range fx.recorder.OfType(models.EventAssistantChunk) {
		joined.WriteString(e.Chunk.Delta)
	}
	if joined.String() != res.Content {
		t.Fatalf("chunks %q != content %q", joined.String(), res.Content)
	}
}

func TestStreamFinishCarriesUsage(t *testing.T) {
	be := backend.NewStubBackend(backend.StubTurn{
		Content: "counted words",
		Usage:   models.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
	})
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	if _, err := fx.orch.Send(context.Background(), TextPayload("count"), SendOptions{Stream: true}); err != nil {
		t.Fatalf("send: %v", err)
	}
	finishes := fx.recorder.OfType(models.EventStreamFinish)
	if len(finishes) != 1 {
		t.Fatalf("finish events = %d", len(finishes))
	}
	if finishes[0].Finish.Usage == nil || finishes[0].Finish.Usage.TotalTokens != 10 {
		t.Fatalf("finish usage = %+v", finishes[0].Finish.Usage)
	}
}

func TestStreamedToolCallsMergeBeforeExecution(t *testing.T) {
	args := `{"text":"delta merge"}`
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo_args", Arguments: args}}},
		backend.StubTurn{Content: "done"},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	var seen string
	fx.registry.Register(&testTool{name: "echo_args", readOnly: true, execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		seen = string(params)
		return &tools.Result{Content: "ok"}, nil
	}})

	res, err := fx.orch.Send(context.Background(), TextPayload("stream a tool"), SendOptions{Stream: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Content != "done" {
		t.Fatalf("content = %q", res.Content)
	}
	// Fragmented argument deltas reassemble byte-exact.
	if seen != args {
		t.Fatalf("tool saw %q", seen)
	}
	if toolResults := fx.recorder.OfType(models.EventToolResult); len(toolResults) != 1 {
		t.Fatalf("tool results = %+v", toolResults)
	}
}

func TestToolExecutionCarriesDelegationEnv(t *testing.T) {
	be := backend.NewStubBackend(
		backend.StubTurn{ToolCalls: []models.ToolCall{{ID: "c9", Name: "spawn", Arguments: "{}"}}},
		backend.StubTurn{Content: "done"},
	)
	fx := newFixture(t, be, models.AgentConfig{Model: "stub", RequireToolApproval: boolp(false)})

	var env tools.DelegationEnv
	var envOK bool
	var callID string
	fx.registry.Register(&testTool{name: "spawn", execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		env, envOK = tools.DelegationEnvFromContext(ctx)
		callID = tools.ToolCallIDFromContext(ctx)
		return &tools.Result{Content: "ok"}, nil
	}})

	res, err := fx.orch.Send(context.Background(), TextPayload("spawn one"), SendOptions{ConversationID: "conv-env"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !envOK {
		t.Fatal("delegation env missing from tool context")
	}
	if env.ConversationID != "conv-env" || env.MessageID != res.MessageID {
		t.Fatalf("env identity = %s/%s", env.ConversationID, env.MessageID)
	}
	if env.Sink == nil {
		t.Fatal("env sink missing")
	}
	if len(env.History) == 0 || env.History[0].Role != models.RoleUser {
		t.Fatalf("env history = %+v", env.History)
	}
	if callID != "c9" {
		t.Fatalf("call id = %q", callID)
	}
}

func TestTurnEventsEndWithExactlyOneTerminal(t *testing.T) {
	be := backend.NewStubBackend(backend.StubTurn{Content: "fin"})
	fx := newFixture(t, be, models.AgentConfig{Model: "stub"})

	if _, err := fx.orch.Send(context.Background(), TextPayload("x"), SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	recorded := fx.recorder.Events()
	terminals := 0
	for _, e := range recorded {
		if e.Type.Terminal() {
			terminals++
		}
	}
	if terminals != 1 || !recorded[len(recorded)-1].Type.Terminal() {
		t.Fatalf("events = %v", eventTypes(recorded))
	}
	// Sequence numbers are strictly increasing.
	for i := 1; i < len(recorded); i++ {
		if recorded[i].Sequence <= recorded[i-1].Sequence {
			t.Fatalf("sequence not monotonic at %d", i)
		}
	}
}
