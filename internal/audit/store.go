// Package audit persists a local log of every tool execution to sqlite.
// The log is an operator forensics aid; the runtime works with a nil
// store.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skein-dev/skein/pkg/models"
)

// ToolEvent is one recorded tool execution.
type ToolEvent struct {
	ID             int64
	ConversationID string
	MessageID      string
	CallID         string
	ToolName       string
	Arguments      string
	Status         models.ResultStatus
	Result         string
	ErrorReason    string
	DurationMs     int64
	CreatedAt      time.Time
}

// Store writes tool events to a sqlite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tool_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	call_id         TEXT NOT NULL,
	tool_name       TEXT NOT NULL,
	arguments       TEXT NOT NULL,
	status          TEXT NOT NULL,
	result          TEXT NOT NULL,
	error_reason    TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_events_conversation
	ON tool_events (conversation_id, id);
`

// Open creates or opens the audit database at path. ":memory:" gives an
// ephemeral store for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent tool batches.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record writes one tool execution. A nil store is a no-op.
func (s *Store) Record(ctx context.Context, conversationID, messageID string, call models.ToolCall, result models.ToolExecutionResult) error {
	if s == nil {
		return nil
	}
	reason := ""
	if r := result.Reason(); r != "" {
		reason = string(r)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_events
			(conversation_id, message_id, call_id, tool_name, arguments,
			 status, result, error_reason, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, messageID, call.ID, call.Name, call.Arguments,
		string(result.Status), result.Text(), reason, result.DurationMs,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record tool event: %w", err)
	}
	return nil
}

// List returns the events for a conversation in insertion order.
func (s *Store) List(ctx context.Context, conversationID string) ([]ToolEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, message_id, call_id, tool_name,
		       arguments, status, result, error_reason, duration_ms, created_at
		FROM tool_events
		WHERE conversation_id = ?
		ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list tool events: %w", err)
	}
	defer rows.Close()

	var events []ToolEvent
	for rows.Next() {
		var ev ToolEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.ConversationID, &ev.MessageID, &ev.CallID,
			&ev.ToolName, &ev.Arguments, &status, &ev.Result,
			&ev.ErrorReason, &ev.DurationMs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tool event: %w", err)
		}
		ev.Status = models.ResultStatus(status)
		events = append(events, ev)
	}
	return events, rows.Err()
}
