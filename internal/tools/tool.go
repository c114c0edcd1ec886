// Package tools implements the tool registry and the bounded-concurrency
// tool executor. Tools are registered by name, validated against their
// declared JSON schema, and executed in batches with per-call timing.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is an executable capability exposed to the model.
//
// Execute receives the raw JSON arguments produced by the model (decoded
// only here, never earlier) and the turn's context for cancellation.
// Errors that belong to the model conversation are returned inside the
// Result with IsError set; a non-nil error return means the execution
// machinery itself failed.
type Tool interface {
	// Name returns the tool name for model function calling.
	Name() string

	// Description explains the tool to the model.
	Description() string

	// Schema returns the JSON Schema (draft-07 subset) for parameters.
	Schema() json.RawMessage

	// Execute runs the tool.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is a tool's raw output before it is wrapped into a
// models.ToolExecutionResult.
type Result struct {
	// Content is the text payload.
	Content string

	// JSON is the structured payload; when set the result type is json.
	JSON json.RawMessage

	// IsError marks the result as an error fed back to the model.
	IsError bool
}

// Definition is the model-facing description of a registered tool.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ReadOnly is implemented by tools that perform no side effects. The
// orchestrator's approval bypass consults this in addition to the fixed
// bypass name list.
type ReadOnly interface {
	ReadOnly() bool
}
