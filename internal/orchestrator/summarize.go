package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skein-dev/skein/internal/backend"
	"github.com/skein-dev/skein/pkg/models"
)

const summarySystemPrompt = "You compress conversation transcripts. " +
	"Produce a concise summary that preserves user goals, decisions made, " +
	"tool results that matter, and any unfinished work. Plain text only."

// Summarize asks the backend for a short summary of the history.
func Summarize(ctx context.Context, be backend.ModelBackend, model string, history []models.Message) (string, error) {
	if be == nil {
		return "", backend.ErrNoBackend
	}

	var transcript strings.Builder
	for _, m := range history {
		if text := m.Content.String(); text != "" {
			fmt.Fprintf(&transcript, "[%s] %s\n", m.Role, text)
		}
		for _, call := range m.ToolCalls {
			fmt.Fprintf(&transcript, "[assistant tool_call] %s %s\n", call.Name, call.Arguments)
		}
	}

	res, err := be.Complete(ctx, backend.CompletionParams{
		Model:        model,
		SystemPrompt: summarySystemPrompt,
		Messages: []models.Message{{
			ID:        uuid.NewString(),
			Role:      models.RoleUser,
			Content:   models.TextContent("Summarize this conversation:\n\n" + transcript.String()),
			Timestamp: time.Now().UTC(),
		}},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return res.Content, nil
}

// summaryMessage wraps a summary into the single user message that
// replaces the history.
func summaryMessage(summary, priorStateID string) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   models.TextContent("[Conversation summary]\n" + summary),
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"summarizedFrom": priorStateID},
	}
}
