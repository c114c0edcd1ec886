// Package events carries the runtime's observable event stream. Sinks
// receive versioned AgentEvents; the orchestrator stamps sequence
// numbers through an Emitter so consumers can detect gaps.
package events

import (
	"context"
	"sync"

	"github.com/skein-dev/skein/pkg/models"
)

// Sink receives agent events. Implementations must be safe for
// concurrent use and must not block indefinitely; slow consumers should
// buffer or drop.
type Sink interface {
	Send(ctx context.Context, event models.AgentEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event models.AgentEvent)

func (f SinkFunc) Send(ctx context.Context, event models.AgentEvent) { f(ctx, event) }

// ChanSink delivers events over a channel. Delivery blocks until the
// consumer reads, the context ends, or the sink is closed. The event
// channel itself is never closed (a concurrent Send could panic);
// consumers select on Done to stop reading.
type ChanSink struct {
	ch     chan models.AgentEvent
	closed chan struct{}
	once   sync.Once
}

func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{
		ch:     make(chan models.AgentEvent, buffer),
		closed: make(chan struct{}),
	}
}

// Events returns the receive side.
func (s *ChanSink) Events() <-chan models.AgentEvent { return s.ch }

// Done is closed when the sink stops delivering.
func (s *ChanSink) Done() <-chan struct{} { return s.closed }

func (s *ChanSink) Send(ctx context.Context, event models.AgentEvent) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case <-s.closed:
	case <-ctx.Done():
	case s.ch <- event:
	}
}

// Close stops delivery. Pending Send calls unblock.
func (s *ChanSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

// MultiSink fans events out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Send(ctx context.Context, event models.AgentEvent) {
	for _, s := range m.sinks {
		s.Send(ctx, event)
	}
}

// Recorder collects events for test assertions.
type Recorder struct {
	mu     sync.Mutex
	events []models.AgentEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Send(ctx context.Context, event models.AgentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []models.AgentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AgentEvent(nil), r.events...)
}

// OfType returns recorded events of the given type, in order.
func (r *Recorder) OfType(eventType models.AgentEventType) []models.AgentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AgentEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
