package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/skein-dev/skein/pkg/models"
)

const tracerName = "github.com/skein-dev/skein/internal/tools"

// ExecObserver receives per-call execution observations. Implemented by
// the metrics collectors; nil disables observation.
type ExecObserver interface {
	ObserveToolExecution(name string, duration time.Duration, isError bool)
}

// Executor runs tool calls in deterministic batches: up to maxConcurrent
// calls execute in parallel, and the next batch starts only after the
// previous batch finished. This bounds peak concurrency and keeps
// failure ordering easy to reason about.
type Executor struct {
	registry *Registry
	observer ExecObserver
	tracer   trace.Tracer

	metricsMu sync.Mutex
	metrics   ExecutorMetrics
}

// ExecutorMetrics tracks executor totals.
type ExecutorMetrics struct {
	TotalExecutions int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// NewExecutor creates an executor over the registry. observer may be nil.
func NewExecutor(registry *Registry, observer ExecObserver) *Executor {
	return &Executor{
		registry: registry,
		observer: observer,
		tracer:   otel.Tracer(tracerName),
	}
}

// Metrics returns a snapshot of the executor counters.
func (e *Executor) Metrics() ExecutorMetrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics
}

// ExecuteAll runs the calls in batches of maxConcurrent. Results are
// returned in input order; callers correlate by id regardless.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall, maxConcurrent int) []models.ToolExecutionResult {
	if len(calls) == 0 {
		return nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = models.DefaultMaxToolConcurrency
	}

	results := make([]models.ToolExecutionResult, len(calls))
	for start := 0; start < len(calls); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(calls) {
			end = len(calls)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			idx := i
			group.Go(func() error {
				results[idx] = e.Execute(groupCtx, calls[idx])
				return nil
			})
		}
		// Workers never return errors; Wait is batch synchronization.
		_ = group.Wait()
	}
	return results
}

// Execute runs a single call with timing, panic containment, and error
// classification.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolExecutionResult {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	result := e.execute(ctx, call)
	result.DurationMs = time.Since(start).Milliseconds()

	isError := result.Status == models.StatusError
	e.metricsMu.Lock()
	e.metrics.TotalExecutions++
	if isError {
		e.metrics.TotalFailures++
		switch result.Reason() {
		case models.ReasonTimeout:
			e.metrics.TotalTimeouts++
		case models.ReasonUnknown:
			if result.Metadata != nil && result.Metadata.Extra != nil {
				if _, panicked := result.Metadata.Extra["panic"]; panicked {
					e.metrics.TotalPanics++
				}
			}
		}
	}
	e.metricsMu.Unlock()

	if e.observer != nil {
		e.observer.ObserveToolExecution(call.Name, time.Since(start), isError)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, call models.ToolCall) (result models.ToolExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.ErrorResult(call, models.ReasonUnknown,
				fmt.Sprintf("tool panicked: %v", r), 0)
			result.Metadata.Extra = map[string]any{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}
		}
	}()

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return models.ErrorResult(call, models.ReasonNotFound, "tool not found: "+call.Name, 0)
	}

	if err := ctx.Err(); err != nil {
		return models.ErrorResult(call, models.ReasonAborted, "tool execution aborted", 0)
	}

	res, err := tool.Execute(WithToolCallID(ctx, call.ID), json.RawMessage(call.Arguments))
	if err != nil {
		return models.ErrorResult(call, classifyError(ctx, err), err.Error(), 0)
	}
	if res == nil {
		return models.ErrorResult(call, models.ReasonUnknown, "tool returned no result", 0)
	}

	out := models.ToolExecutionResult{
		ID:     call.ID,
		Name:   call.Name,
		Type:   models.ResultText,
		Status: models.StatusSuccess,
		Result: res.Content,
	}
	if len(res.JSON) > 0 {
		out.Type = models.ResultJSON
		out.Data = res.JSON
	}
	if res.IsError {
		out.Status = models.StatusError
		out.Metadata = &models.ResultMetadata{ErrorReason: models.ReasonUnknown}
	}
	return out
}

// classifyError maps execution failures onto the closed reason set.
func classifyError(ctx context.Context, err error) models.ErrorReason {
	switch {
	case errors.Is(err, context.Canceled):
		return models.ReasonAborted
	case errors.Is(err, context.DeadlineExceeded):
		return models.ReasonTimeout
	case ctx.Err() != nil:
		return models.ReasonAborted
	}

	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return models.ReasonInvalidInput
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return models.ReasonNotFound
	}
	return models.ReasonUnknown
}

// InvalidInputError marks parameter failures detected inside a tool.
type InvalidInputError struct {
	Cause error
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Cause.Error()
}

func (e *InvalidInputError) Unwrap() error { return e.Cause }

// NotFoundError marks a missing target resource inside a tool.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.What
}
