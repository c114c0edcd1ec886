package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/skein-dev/skein/pkg/models"
)

// Decision is a policy-layer verdict on a pending approval.
type Decision string

const (
	DecisionApprove    Decision = "approve"
	DecisionApproveAll Decision = "approve_all"
	DecisionDeny       Decision = "deny"
	DecisionEdit       Decision = "edit"
)

// Resolution carries one decision back to the waiting turn.
type Resolution struct {
	Decision Decision

	// ApprovedCalls replaces the awaiting calls for approve decisions.
	// Nil means approve the original list unchanged.
	ApprovedCalls []models.ToolCall

	// EditInstruction is attached to every awaiting call for edit
	// decisions.
	EditInstruction string
}

// Broker correlates approval requests with their eventual decisions.
// Each request gets a one-shot channel; resolving an id more than once,
// or resolving an unknown id, is a logged no-op.
type Broker struct {
	mu      sync.Mutex
	pending map[string]chan Resolution
	logger  *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{pending: make(map[string]chan Resolution), logger: logger}
}

// Request registers a new approval wait and returns its id.
func (b *Broker) Request() string {
	id := uuid.NewString()
	ch := make(chan Resolution, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	return id
}

// Await blocks until the approval resolves or the context ends. A
// cancelled wait is removed from the pending table and surfaces as the
// context's error.
func (b *Broker) Await(ctx context.Context, approvalID string) (Resolution, error) {
	b.mu.Lock()
	ch, ok := b.pending[approvalID]
	b.mu.Unlock()
	if !ok {
		return Resolution{}, fmt.Errorf("approval %s is not pending", approvalID)
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, approvalID)
		b.mu.Unlock()
		return Resolution{}, ctx.Err()
	}
}

// Resolve delivers a decision. Exactly the first resolution for an id
// wins; later calls and unknown ids do nothing.
func (b *Broker) Resolve(approvalID string, res Resolution) {
	b.mu.Lock()
	ch, ok := b.pending[approvalID]
	if ok {
		delete(b.pending, approvalID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("ignoring resolution for unknown approval", "approval_id", approvalID)
		return
	}
	ch <- res
}

// Pending reports whether an approval id is still awaiting a decision.
func (b *Broker) Pending(approvalID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[approvalID]
	return ok
}
