package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageContentShapes(t *testing.T) {
	tests := []struct {
		name    string
		content MessageContent
		want    string
	}{
		{"plain string", TextContent("hello"), `"hello"`},
		{"empty string", TextContent(""), `""`},
		{"null", NullContent(), `null`},
		{
			"parts",
			PartsContent([]ContentPart{
				TextPart("look at this"),
				ImageContentPart("aGk=", "image/png", "a cat"),
			}),
			`[{"type":"text","text":"look at this"},{"type":"image","image":{"data":"aGk=","mimeType":"image/png","altText":"a cat"}}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.content)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("marshal = %s, want %s", data, tt.want)
			}

			var back MessageContent
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			again, err := json.Marshal(back)
			if err != nil {
				t.Fatalf("re-marshal: %v", err)
			}
			if string(again) != tt.want {
				t.Fatalf("round trip = %s, want %s", again, tt.want)
			}
		})
	}
}

func TestMessageContentString(t *testing.T) {
	c := PartsContent([]ContentPart{
		TextPart("first"),
		ImageContentPart("data", "image/png", ""),
		TextPart("second"),
	})
	if got := c.String(); got != "first\nsecond" {
		t.Fatalf("String() = %q", got)
	}
}

func TestMessageValidate(t *testing.T) {
	msg := Message{ID: "m1", Role: RoleUser, Content: TextContent("hi"), Timestamp: time.Now()}
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	bad := Message{ID: "m2", Role: Role("robot")}
	if err := bad.Validate(); err == nil {
		t.Fatal("undeclared role accepted")
	}

	orphan := Message{ID: "m3", Role: RoleTool}
	if err := orphan.Validate(); err == nil {
		t.Fatal("tool message without tool_call_id accepted")
	}
}

func TestRoleEnumClosed(t *testing.T) {
	for _, r := range MessageRoles {
		if !r.Valid() {
			t.Fatalf("declared role %q reported invalid", r)
		}
	}
	if Role("operator").Valid() {
		t.Fatal("undeclared role reported valid")
	}
}

func TestCloneMessagesIsDeep(t *testing.T) {
	src := []Message{{
		ID:        "m1",
		Role:      RoleAssistant,
		Content:   TextContent("x"),
		ToolCalls: []ToolCall{{ID: "t1", Name: "shell", Arguments: `{"cmd":"ls"}`}},
		Metadata:  map[string]any{"k": "v"},
	}}
	clone := CloneMessages(src)
	clone[0].ToolCalls[0].Name = "changed"
	clone[0].Metadata["k"] = "changed"
	if src[0].ToolCalls[0].Name != "shell" || src[0].Metadata["k"] != "v" {
		t.Fatal("clone shares state with source")
	}
}
