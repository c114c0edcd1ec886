// Package models provides the domain types shared across the Skein runtime:
// messages, tool calls, agent events, and session metadata.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageRoles is the closed set of valid roles. Anything outside this
// list is rejected by Message.Validate.
var MessageRoles = []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool}

// Valid reports whether the role is one of the declared MessageRoles.
func (r Role) Valid() bool {
	for _, known := range MessageRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ContentPart is one element of a multi-part message body. Exactly one of
// Text or Image is set, discriminated by Type.
type ContentPart struct {
	Type  string     `json:"type"` // "text" or "image"
	Text  string     `json:"text,omitempty"`
	Image *ImagePart `json:"image,omitempty"`
}

// ImagePart carries an embedded image as base64 data.
type ImagePart struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	AltText  string `json:"altText,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImageContentPart builds an image content part.
func ImageContentPart(data, mimeType, altText string) ContentPart {
	return ContentPart{Type: "image", Image: &ImagePart{Data: data, MimeType: mimeType, AltText: altText}}
}

// MessageContent is a message body that serializes as a bare JSON string,
// null, or an ordered list of parts. The three shapes are preserved across
// a marshal/unmarshal round trip.
type MessageContent struct {
	Text  string
	Parts []ContentPart
	Null  bool
}

// TextContent builds a plain-string content value.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// PartsContent builds a multi-part content value.
func PartsContent(parts []ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// NullContent builds an explicit null content value.
func NullContent() MessageContent {
	return MessageContent{Null: true}
}

// IsEmpty reports whether the content carries no text and no parts.
func (c MessageContent) IsEmpty() bool {
	return !c.Null && c.Text == "" && len(c.Parts) == 0
}

// String flattens the content to plain text, joining text parts with
// newlines and skipping images.
func (c MessageContent) String() string {
	if len(c.Parts) == 0 {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// MarshalJSON emits a string, null, or part array depending on shape.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Null {
		return []byte("null"), nil
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, null, or part array.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	*c = MessageContent{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		c.Null = true
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		parts := []ContentPart{}
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.Parts = parts
		return nil
	}
	return json.Unmarshal(data, &c.Text)
}

// ToolCall represents a model request to execute a tool. Arguments is the
// raw JSON-encoded string exactly as produced by the model; it is never
// re-parsed until execution so that streamed fragments concatenate
// byte-exactly.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a conversation. Messages are append-only within
// a conversation; role-specific fields are populated per Role.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   MessageContent `json:"content"`
	Timestamp time.Time      `json:"timestamp"`

	// Assistant messages may carry tool calls.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool messages reference the call they answer.
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
	Status     ResultStatus `json:"status,omitempty"`
	DurationMs int64        `json:"durationMs,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks structural consistency of the message.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMessageID
	}
	if !m.Role.Valid() {
		return ErrMessageRole
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return ErrToolCallRef
	}
	return nil
}

// ErrorReasonOf extracts the errorReason metadata value, if present.
func (m *Message) ErrorReasonOf() (ErrorReason, bool) {
	if m.Metadata == nil {
		return "", false
	}
	switch v := m.Metadata["errorReason"].(type) {
	case string:
		return ErrorReason(v), true
	case ErrorReason:
		return v, true
	}
	return "", false
}

// CloneMessages deep-copies a message slice so callers cannot mutate
// store-owned state.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = cloneMessage(m)
	}
	return out
}

// CloneToolCalls copies a tool call slice.
func CloneToolCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	return append([]ToolCall(nil), calls...)
}

func cloneMessage(m Message) Message {
	clone := m
	if m.ToolCalls != nil {
		clone.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.Content.Parts != nil {
		clone.Content.Parts = append([]ContentPart(nil), m.Content.Parts...)
	}
	if m.Metadata != nil {
		meta := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			meta[k] = v
		}
		clone.Metadata = meta
	}
	return clone
}
