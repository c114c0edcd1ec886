// Package orchestrator runs the agent turn loop: it interleaves model
// completions with approved tool executions, persists the transcript,
// and streams progress events until the turn ends in Done or Error.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skein-dev/skein/internal/audit"
	"github.com/skein-dev/skein/internal/backend"
	"github.com/skein-dev/skein/internal/conversation"
	"github.com/skein-dev/skein/internal/events"
	"github.com/skein-dev/skein/internal/metrics"
	"github.com/skein-dev/skein/internal/tools"
	"github.com/skein-dev/skein/pkg/models"
)

const (
	tracerName = "github.com/skein-dev/skein/internal/orchestrator"

	// DefaultConversationID is used when a send names no conversation.
	DefaultConversationID = "default"

	// maxToolIterations caps the completion/tool loop per turn.
	maxToolIterations = 32

	deniedMessage = "Tool execution denied by user"
)

// ErrMaxIterations fires when a single turn needs more tool iterations
// than the safety cap allows.
var ErrMaxIterations = errors.New("tool loop exceeded maximum iterations")

// Options configures an Orchestrator. Conversations and Registry are
// required; everything else has a working default.
type Options struct {
	Config        models.AgentConfig
	Conversations *conversation.Store
	Registry      *tools.Registry
	Executor      *tools.Executor
	Backend       backend.ModelBackend
	Sink          events.Sink
	Approvals     *Broker
	Reminders     Reminder
	Metrics       *metrics.SessionMetrics
	Collector     *metrics.Collector
	Estimator     *metrics.TokenEstimator
	Audit         *audit.Store
	Bypass        *BypassSet
	Logger        *slog.Logger
}

// Orchestrator drives turns for one agent configuration. The backend
// and sink references may be swapped at runtime; the orchestrator holds
// them, it does not own them.
type Orchestrator struct {
	config        models.AgentConfig
	conversations *conversation.Store
	registry      *tools.Registry
	executor      *tools.Executor
	backend       backend.ModelBackend
	sink          events.Sink
	approvals     *Broker
	reminders     Reminder
	metrics       *metrics.SessionMetrics
	collector     *metrics.Collector
	estimator     *metrics.TokenEstimator
	audit         *audit.Store
	bypass        *BypassSet
	logger        *slog.Logger
	tracer        trace.Tracer
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Conversations == nil {
		return nil, errors.New("orchestrator: conversation store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: tool registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	executor := opts.Executor
	if executor == nil {
		// Convert only a non-nil collector to the observer interface; a
		// nil *metrics.Collector in the interface would defeat the
		// executor's nil check.
		var observer tools.ExecObserver
		if opts.Collector != nil {
			observer = opts.Collector
		}
		executor = tools.NewExecutor(opts.Registry, observer)
	}
	approvals := opts.Approvals
	if approvals == nil {
		approvals = NewBroker(logger)
	}
	reminders := opts.Reminders
	if reminders == nil {
		reminders = NoReminders()
	}
	sessionMetrics := opts.Metrics
	if sessionMetrics == nil {
		sessionMetrics = metrics.NewSessionMetrics(nil, nil)
	}
	bypass := opts.Bypass
	if bypass == nil {
		bypass = NewBypassSet(nil, opts.Registry)
	}
	return &Orchestrator{
		config:        opts.Config,
		conversations: opts.Conversations,
		registry:      opts.Registry,
		executor:      executor,
		backend:       opts.Backend,
		sink:          opts.Sink,
		approvals:     approvals,
		reminders:     reminders,
		metrics:       sessionMetrics,
		collector:     opts.Collector,
		estimator:     opts.Estimator,
		audit:         opts.Audit,
		bypass:        bypass,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// SetBackend swaps the model backend.
func (o *Orchestrator) SetBackend(be backend.ModelBackend) { o.backend = be }

// SetSink swaps the event sink.
func (o *Orchestrator) SetSink(sink events.Sink) { o.sink = sink }

// Metrics exposes the session counters.
func (o *Orchestrator) Metrics() *metrics.SessionMetrics { return o.metrics }

// HandleToolApproval delivers the policy layer's decision for a pending
// approval. Unknown ids and repeated resolutions are ignored.
func (o *Orchestrator) HandleToolApproval(approvalID string, decision Decision, approvedCalls []models.ToolCall, editInstruction string) {
	o.approvals.Resolve(approvalID, Resolution{
		Decision:        decision,
		ApprovedCalls:   approvedCalls,
		EditInstruction: editInstruction,
	})
}

// SendOptions tunes one Send call.
type SendOptions struct {
	ConversationID string
	Stream         bool
}

// MessageResponse is the terminal value of one turn.
type MessageResponse struct {
	MessageID      string
	ConversationID string
	Content        string
	Usage          models.Usage
	ResponseTimeMs int64
}

// Send runs one turn to completion. Progress is streamed to the sink;
// the stream for this turn always ends with exactly one Done or Error.
func (o *Orchestrator) Send(ctx context.Context, payload UserPayload, opts SendOptions) (*MessageResponse, error) {
	started := time.Now()
	convID := opts.ConversationID
	if convID == "" {
		convID = DefaultConversationID
	}
	messageID := uuid.NewString()
	em := events.NewEmitter(o.sink, convID, messageID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.send", trace.WithAttributes(
		attribute.String("conversation_id", convID),
		attribute.String("message_id", messageID),
	))
	defer span.End()

	fail := func(err error) (*MessageResponse, error) {
		text := err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			text = "aborted"
		}
		em.Emit(context.WithoutCancel(ctx), models.AgentEvent{
			Type:  models.EventError,
			Error: &models.ErrorPayload{Error: text},
		})
		return nil, err
	}

	if o.backend == nil {
		return fail(backend.ErrNoBackend)
	}

	history, err := o.conversations.History(ctx, convID)
	if err != nil {
		return fail(err)
	}
	history = repairTranscript(history)

	reminders := o.reminders.Enhance(ctx, payload.Text)
	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   buildUserContent(payload.Text, reminders, payload.Attachments),
		Timestamp: time.Now().UTC(),
	}
	if err := o.appendMemory(ctx, em, convID, userMsg); err != nil {
		return fail(err)
	}

	enabled := o.config.EnabledTools
	if len(enabled) == 0 {
		enabled = o.registry.Names()
	}
	em.Emit(ctx, models.AgentEvent{
		Type: models.EventMessageStarted,
		Started: &models.MessageStartedPayload{
			UserContent: payload.Display(),
			Enhanced:    reminders,
			ToolNames:   enabled,
		},
	})

	transcript := append(models.CloneMessages(history), userMsg)
	var totalUsage, lastUsage models.Usage

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		result, elapsed, err := o.complete(ctx, em, transcript, enabled, opts.Stream)
		if err != nil {
			return fail(err)
		}
		usage := o.ensureUsage(result, transcript)
		lastUsage = usage
		totalUsage.Add(&usage)
		o.recordCompletion(convID, usage, elapsed)
		o.checkContextWindow(ctx, em, convID)

		if len(result.ToolCalls) == 0 {
			assistant := models.Message{
				ID:        messageID,
				Role:      models.RoleAssistant,
				Content:   models.TextContent(result.Content),
				Timestamp: time.Now().UTC(),
			}
			if err := o.appendMemory(ctx, em, convID, assistant); err != nil {
				return fail(err)
			}
			em.Emit(ctx, models.AgentEvent{
				Type:      models.EventAssistantMessage,
				Assistant: &models.AssistantPayload{Content: result.Content, Usage: usage.Clone()},
			})
			return o.finish(ctx, em, convID, messageID, result.Content, totalUsage, lastUsage, started)
		}

		if result.Content != "" {
			em.Emit(ctx, models.AgentEvent{
				Type:      models.EventAssistantMessage,
				Assistant: &models.AssistantPayload{Content: result.Content},
			})
		}
		em.Emit(ctx, models.AgentEvent{
			Type:  models.EventToolCalls,
			Calls: &models.ToolCallsPayload{ToolCalls: result.ToolCalls, Usage: usage.Clone()},
		})

		var bypassed, gated []models.ToolCall
		for _, call := range result.ToolCalls {
			if o.bypass.Allows(call.Name) {
				bypassed = append(bypassed, call)
			} else {
				gated = append(gated, call)
			}
		}

		// Tools that spawn sub-agents need the turn's identity and the
		// parent sink; they read it back from the execution context.
		toolCtx := tools.WithDelegationEnv(ctx, tools.DelegationEnv{
			Sink:           o.sink,
			ConversationID: convID,
			MessageID:      messageID,
			History:        models.CloneMessages(transcript),
		})

		var results []models.ToolExecutionResult
		if len(bypassed) > 0 {
			for _, res := range o.executor.ExecuteAll(toolCtx, bypassed, o.config.Concurrency()) {
				o.recordToolResult(ctx, em, convID, messageID, res)
				results = append(results, res)
			}
		}

		execCtx := toolCtx
		approved := gated
		denied := false
		if len(gated) > 0 && o.config.ApprovalRequired() {
			approvalID := o.approvals.Request()
			em.Emit(ctx, models.AgentEvent{
				Type:  models.EventToolApprovalRequired,
				Calls: &models.ToolCallsPayload{ToolCalls: gated, ApprovalID: approvalID},
			})
			resolution, err := o.approvals.Await(ctx, approvalID)
			if err != nil {
				return fail(err)
			}
			switch resolution.Decision {
			case DecisionDeny:
				denied = true
			case DecisionEdit:
				execCtx = tools.WithEditInstruction(toolCtx, resolution.EditInstruction)
			case DecisionApprove, DecisionApproveAll:
				if resolution.ApprovedCalls != nil {
					approved = resolution.ApprovedCalls
				}
			default:
				o.logger.Warn("unrecognized approval decision, denying",
					"approval_id", approvalID, "decision", string(resolution.Decision))
				denied = true
			}
		}

		if denied {
			for _, call := range gated {
				res := models.ErrorResult(call, models.ReasonDenied, deniedMessage, 0)
				o.recordToolResult(ctx, em, convID, messageID, res)
				results = append(results, res)
			}
			msgs := o.toolTurnMessages(result, results)
			if err := o.appendMemory(ctx, em, convID, msgs...); err != nil {
				return fail(err)
			}
			em.Emit(ctx, models.AgentEvent{
				Type:      models.EventAssistantMessage,
				Assistant: &models.AssistantPayload{Content: deniedMessage},
			})
			return o.finish(ctx, em, convID, messageID, deniedMessage, totalUsage, lastUsage, started)
		}

		// An approval subset denies whatever it leaves out; every call
		// announced by the assistant gets a tool message.
		if len(approved) != len(gated) {
			kept := make(map[string]struct{}, len(approved))
			for _, call := range approved {
				kept[call.ID] = struct{}{}
			}
			for _, call := range gated {
				if _, ok := kept[call.ID]; ok {
					continue
				}
				res := models.ErrorResult(call, models.ReasonDenied, deniedMessage, 0)
				o.recordToolResult(ctx, em, convID, messageID, res)
				results = append(results, res)
			}
		}

		toExecute := approved[:0:0]
		for _, call := range approved {
			if o.config.StrictToolValidation {
				if err := o.registry.Validate(call.Name, call.Arguments); err != nil {
					res := models.ErrorResult(call, models.ReasonValidationFailed, err.Error(), 0)
					o.recordToolResult(ctx, em, convID, messageID, res)
					results = append(results, res)
					continue
				}
			}
			toExecute = append(toExecute, call)
		}
		if len(toExecute) > 0 {
			for _, res := range o.executor.ExecuteAll(execCtx, toExecute, o.config.Concurrency()) {
				o.recordToolResult(ctx, em, convID, messageID, res)
				results = append(results, res)
			}
		}
		o.metrics.RecordToolCalls(len(results))

		msgs := o.toolTurnMessages(result, results)
		if err := o.appendMemory(ctx, em, convID, msgs...); err != nil {
			return fail(err)
		}
		transcript = append(transcript, msgs...)
	}

	return fail(ErrMaxIterations)
}

// complete performs one model call, streaming when requested and
// supported.
func (o *Orchestrator) complete(ctx context.Context, em *events.Emitter, transcript []models.Message, enabled []string, stream bool) (*backend.CompletionResult, time.Duration, error) {
	params := backend.CompletionParams{
		Model:           o.config.Model,
		SystemPrompt:    o.config.SystemPrompt,
		Messages:        transcript,
		Tools:           o.registry.Definitions(enabled),
		Temperature:     o.config.Temperature,
		TopP:            o.config.TopP,
		MaxTokens:       o.config.MaxTokens,
		ReasoningEffort: o.config.ReasoningEffort,
	}

	start := time.Now()
	var result *backend.CompletionResult
	var err error
	if sb, ok := o.backend.(backend.StreamingBackend); ok && stream {
		result, err = sb.StreamComplete(ctx, params, backend.StreamHandlers{
			OnChunk: func(delta string, usage *models.Usage) {
				em.Emit(ctx, models.AgentEvent{
					Type:  models.EventAssistantChunk,
					Chunk: &models.ChunkPayload{Delta: delta, Usage: usage},
				})
			},
			OnReasoningChunk: func(delta string) {
				em.Emit(ctx, models.AgentEvent{
					Type:  models.EventReasoningChunk,
					Chunk: &models.ChunkPayload{Delta: delta},
				})
			},
			OnFinish: func(stopReason string, usage *models.Usage) {
				em.Emit(ctx, models.AgentEvent{
					Type:   models.EventStreamFinish,
					Finish: &models.StreamFinishPayload{FinishReason: stopReason, Usage: usage},
				})
			},
		})
	} else {
		result, err = o.backend.Complete(ctx, params)
	}
	elapsed := time.Since(start)

	if o.collector != nil {
		prompt, completion := 0, 0
		if result != nil {
			prompt, completion = result.Usage.PromptTokens, result.Usage.CompletionTokens
		}
		o.collector.ObserveModelCall(o.config.Model, elapsed, prompt, completion, err)
	}
	if err != nil {
		return nil, elapsed, err
	}
	return result, elapsed, nil
}

// ensureUsage fills in estimated counts when the backend reported none.
func (o *Orchestrator) ensureUsage(result *backend.CompletionResult, transcript []models.Message) models.Usage {
	usage := result.Usage
	if usage.TotalTokens > 0 || o.estimator == nil {
		return usage
	}
	usage.PromptTokens = o.estimator.CountMessages(transcript) + o.estimator.CountText(o.config.SystemPrompt)
	usage.CompletionTokens = o.estimator.CountText(result.Content)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

func (o *Orchestrator) recordCompletion(convID string, usage models.Usage, elapsed time.Duration) {
	o.metrics.RecordCompletion(o.config.Model, usage, elapsed)
	if err := o.conversations.RecordUsage(convID, &usage); err != nil {
		o.logger.Warn("failed to record conversation usage", "conversation_id", convID, "error", err)
	}
}

// checkContextWindow warns on high usage and triggers the auto-summary
// at the hard threshold.
func (o *Orchestrator) checkContextWindow(ctx context.Context, em *events.Emitter, convID string) {
	action, notice := o.metrics.CheckContextWindow(o.config.Provider, o.config.Model)
	if action == metrics.ContextOK {
		return
	}
	em.Emit(ctx, models.AgentEvent{
		Type:   models.EventNoticeLine,
		Notice: &models.NoticePayload{Line: notice},
	})
	if action != metrics.ContextSummarize {
		return
	}
	if err := o.autoSummarize(ctx, convID); err != nil {
		o.logger.Warn("auto-summary failed", "conversation_id", convID, "error", err)
	}
}

// autoSummarize replaces the conversation history with a single summary
// message. The prior history is archived under its own memory key and
// referenced through summarizedFrom.
func (o *Orchestrator) autoSummarize(ctx context.Context, convID string) error {
	history, err := o.conversations.History(ctx, convID)
	if err != nil {
		return err
	}
	summary, err := Summarize(ctx, o.backend, o.config.Model, history)
	if err != nil {
		return err
	}

	archiveKey := "archive:" + convID + ":" + uuid.NewString()
	if err := o.conversations.Memory().Set(ctx, archiveKey, history); err != nil {
		return err
	}
	if err := o.conversations.ReplaceWithSummary(ctx, convID, summaryMessage(summary, archiveKey), archiveKey); err != nil {
		return err
	}
	o.metrics.Reset()
	o.logger.Info("conversation summarized",
		"conversation_id", convID, "archived_as", archiveKey, "prior_messages", len(history))
	return nil
}

// recordToolResult emits the ToolResult event and writes the audit row.
func (o *Orchestrator) recordToolResult(ctx context.Context, em *events.Emitter, convID, messageID string, res models.ToolExecutionResult) {
	em.Emit(ctx, models.AgentEvent{
		Type:   models.EventToolResult,
		Result: &res,
	})
	call := models.ToolCall{ID: res.ID, Name: res.Name}
	if err := o.audit.Record(ctx, convID, messageID, call, res); err != nil {
		o.logger.Warn("failed to write tool audit row", "tool", res.Name, "error", err)
	}
}

// toolTurnMessages builds the memory delta for one tool iteration: the
// assistant message announcing the calls, then one tool message per
// result.
func (o *Orchestrator) toolTurnMessages(result *backend.CompletionResult, results []models.ToolExecutionResult) []models.Message {
	content := models.NullContent()
	if result.Content != "" {
		content = models.TextContent(result.Content)
	}
	msgs := []models.Message{{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
		ToolCalls: models.CloneToolCalls(result.ToolCalls),
	}}
	for _, res := range results {
		msg := models.Message{
			ID:         uuid.NewString(),
			Role:       models.RoleTool,
			Content:    models.TextContent(res.Text()),
			Timestamp:  time.Now().UTC(),
			ToolCallID: res.ID,
			Name:       res.Name,
			Status:     res.Status,
			DurationMs: res.DurationMs,
		}
		if reason := res.Reason(); reason != "" {
			msg.Metadata = map[string]any{"errorReason": string(reason)}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (o *Orchestrator) appendMemory(ctx context.Context, em *events.Emitter, convID string, msgs ...models.Message) error {
	if err := o.conversations.Append(ctx, convID, msgs...); err != nil {
		return err
	}
	em.Emit(ctx, models.AgentEvent{
		Type:   models.EventMemoryAppended,
		Memory: &models.MemoryPayload{Delta: models.CloneMessages(msgs)},
	})
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, em *events.Emitter, convID, messageID, content string, totalUsage, lastUsage models.Usage, started time.Time) (*MessageResponse, error) {
	elapsed := time.Since(started).Milliseconds()
	em.Emit(ctx, models.AgentEvent{
		Type: models.EventDone,
		Done: &models.DonePayload{ResponseTimeMs: elapsed, Usage: lastUsage.Clone()},
	})
	return &MessageResponse{
		MessageID:      messageID,
		ConversationID: convID,
		Content:        content,
		Usage:          totalUsage,
		ResponseTimeMs: elapsed,
	}, nil
}
