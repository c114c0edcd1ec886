package models

import (
	"encoding/json"
	"errors"
)

// Sentinel validation errors for messages.
var (
	ErrMessageID   = errors.New("message id is required")
	ErrMessageRole = errors.New("message role is not a declared role")
	ErrToolCallRef = errors.New("tool message requires a tool_call_id")
)

// ResultStatus marks a tool execution outcome.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ResultType discriminates the payload shape of a tool result.
type ResultType string

const (
	ResultText ResultType = "text"
	ResultJSON ResultType = "json"
)

// ErrorReason classifies tool and turn failures. The set is closed; every
// error surfaced on a tool result carries one of these.
type ErrorReason string

const (
	ReasonInvalidInput     ErrorReason = "InvalidInput"
	ReasonNotFound         ErrorReason = "NotFound"
	ReasonDenied           ErrorReason = "Denied"
	ReasonValidationFailed ErrorReason = "ValidationFailed"
	ReasonTimeout          ErrorReason = "Timeout"
	ReasonAborted          ErrorReason = "Aborted"
	ReasonUnknown          ErrorReason = "Unknown"
)

// ErrorReasons is the closed list of declared reasons.
var ErrorReasons = []ErrorReason{
	ReasonInvalidInput,
	ReasonNotFound,
	ReasonDenied,
	ReasonValidationFailed,
	ReasonTimeout,
	ReasonAborted,
	ReasonUnknown,
}

// Valid reports whether the reason is declared.
func (r ErrorReason) Valid() bool {
	for _, known := range ErrorReasons {
		if r == known {
			return true
		}
	}
	return false
}

// ResultMetadata carries structured detail alongside a tool result.
type ResultMetadata struct {
	ErrorReason ErrorReason    `json:"errorReason,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ToolExecutionResult is the outcome of one tool call. ID matches the
// ToolCall.ID it answers. Result holds text output; Data holds structured
// output when Type is ResultJSON.
type ToolExecutionResult struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     ResultStatus    `json:"status"`
	Type       ResultType      `json:"type"`
	Result     string          `json:"-"`
	Data       json.RawMessage `json:"-"`
	DurationMs int64           `json:"durationMs"`
	Metadata   *ResultMetadata `json:"metadata,omitempty"`
}

// Text renders the result payload as a string for feeding back to the
// model regardless of payload type.
func (r *ToolExecutionResult) Text() string {
	if r.Type == ResultJSON && len(r.Data) > 0 {
		return string(r.Data)
	}
	return r.Result
}

// Reason returns the error reason, or empty when the result succeeded.
func (r *ToolExecutionResult) Reason() ErrorReason {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.ErrorReason
}

type toolResultWire struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     ResultStatus    `json:"status"`
	Type       ResultType      `json:"type"`
	Result     json.RawMessage `json:"result"`
	DurationMs int64           `json:"durationMs"`
	Metadata   *ResultMetadata `json:"metadata,omitempty"`
}

// MarshalJSON emits the result field as a string for text results and as
// the structured value for json results.
func (r ToolExecutionResult) MarshalJSON() ([]byte, error) {
	wire := toolResultWire{
		ID:         r.ID,
		Name:       r.Name,
		Status:     r.Status,
		Type:       r.Type,
		DurationMs: r.DurationMs,
		Metadata:   r.Metadata,
	}
	if r.Type == ResultJSON && len(r.Data) > 0 {
		wire.Result = r.Data
	} else {
		encoded, err := json.Marshal(r.Result)
		if err != nil {
			return nil, err
		}
		wire.Result = encoded
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores the payload into Result or Data per Type.
func (r *ToolExecutionResult) UnmarshalJSON(data []byte) error {
	var wire toolResultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = ToolExecutionResult{
		ID:         wire.ID,
		Name:       wire.Name,
		Status:     wire.Status,
		Type:       wire.Type,
		DurationMs: wire.DurationMs,
		Metadata:   wire.Metadata,
	}
	if r.Type == ResultJSON {
		r.Data = wire.Result
		return nil
	}
	if len(wire.Result) > 0 {
		return json.Unmarshal(wire.Result, &r.Result)
	}
	return nil
}

// ErrorResult builds a failed result for a call with the given reason and
// human-readable message.
func ErrorResult(call ToolCall, reason ErrorReason, message string, durationMs int64) ToolExecutionResult {
	return ToolExecutionResult{
		ID:         call.ID,
		Name:       call.Name,
		Status:     StatusError,
		Type:       ResultText,
		Result:     message,
		DurationMs: durationMs,
		Metadata:   &ResultMetadata{ErrorReason: reason},
	}
}
