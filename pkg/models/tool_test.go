package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestToolResultTextPayload(t *testing.T) {
	res := ToolExecutionResult{
		ID:         "call_1",
		Name:       "reverse_text",
		Status:     StatusSuccess,
		Type:       ResultText,
		Result:     "cba",
		DurationMs: 12,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"result":"cba"`) {
		t.Fatalf("text result not encoded as string: %s", data)
	}

	var back ToolExecutionResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Result != "cba" || back.Text() != "cba" {
		t.Fatalf("round trip lost payload: %+v", back)
	}
}

func TestToolResultJSONPayload(t *testing.T) {
	res := ToolExecutionResult{
		ID:     "call_2",
		Name:   "todo_read",
		Status: StatusSuccess,
		Type:   ResultJSON,
		Data:   json.RawMessage(`{"items":["a","b"]}`),
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"result":{"items":["a","b"]}`) {
		t.Fatalf("json result not encoded structurally: %s", data)
	}

	var back ToolExecutionResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Text() != `{"items":["a","b"]}` {
		t.Fatalf("Text() = %q", back.Text())
	}
}

func TestErrorResultCarriesReason(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "file_edit", Arguments: "{}"}
	res := ErrorResult(call, ReasonDenied, "tool denied by user", 0)
	if res.Status != StatusError || res.Reason() != ReasonDenied {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ID != "c1" || res.Name != "file_edit" {
		t.Fatalf("call identity not carried: %+v", res)
	}
}

func TestErrorReasonEnumClosed(t *testing.T) {
	for _, r := range ErrorReasons {
		if !r.Valid() {
			t.Fatalf("declared reason %q reported invalid", r)
		}
	}
	if ErrorReason("Exploded").Valid() {
		t.Fatal("undeclared reason reported valid")
	}
}

func TestAgentEventTypeEnumClosed(t *testing.T) {
	for _, et := range AgentEventTypes {
		if !et.Valid() {
			t.Fatalf("declared event type %q reported invalid", et)
		}
	}
	if AgentEventType("mystery.event").Valid() {
		t.Fatal("undeclared event type reported valid")
	}
	if !EventDone.Terminal() || !EventError.Terminal() || EventToolResult.Terminal() {
		t.Fatal("terminal classification wrong")
	}
}
