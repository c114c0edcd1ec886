package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/skein-dev/skein/pkg/models"
)

// Emitter stamps outgoing events with the schema version, a timestamp,
// the turn's identifiers, and a monotonic sequence, then forwards them
// to the sink. One Emitter serves one turn.
type Emitter struct {
	sink           Sink
	conversationID string
	messageID      string
	seq            atomic.Uint64
}

// NewEmitter creates an emitter for one turn. sink may be nil, which
// discards events.
func NewEmitter(sink Sink, conversationID, messageID string) *Emitter {
	return &Emitter{sink: sink, conversationID: conversationID, messageID: messageID}
}

// Emit stamps and forwards one event.
func (e *Emitter) Emit(ctx context.Context, event models.AgentEvent) {
	if e == nil || e.sink == nil {
		return
	}
	event.Version = models.AgentEventVersion
	event.Time = time.Now().UTC()
	event.Sequence = e.seq.Add(1)
	if event.ConversationID == "" {
		event.ConversationID = e.conversationID
	}
	if event.MessageID == "" {
		event.MessageID = e.messageID
	}
	e.sink.Send(ctx, event)
}
