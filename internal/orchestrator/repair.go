package orchestrator

import "github.com/skein-dev/skein/pkg/models"

// repairTranscript drops messages that violate the tool-call pairing
// invariant: a tool message must answer a tool call announced by an
// earlier assistant message. Partial writes (crash between the
// assistant append and its tool results) otherwise poison every later
// model call.
func repairTranscript(msgs []models.Message) []models.Message {
	announced := make(map[string]bool)
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleTool {
			if m.ToolCallID == "" || !announced[m.ToolCallID] {
				continue
			}
		}
		for _, call := range m.ToolCalls {
			announced[call.ID] = true
		}
		out = append(out, m)
	}
	return out
}
