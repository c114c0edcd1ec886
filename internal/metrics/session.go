// Package metrics tracks per-session token and cost counters, decides
// when the context window needs a warning or an automatic summary, and
// exposes prometheus collectors for tool and model activity.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/skein-dev/skein/pkg/models"
)

// ContextAction is the outcome of a context-window check.
type ContextAction int

const (
	// ContextOK means no action is needed.
	ContextOK ContextAction = iota

	// ContextWarn means a warning notice should be shown.
	ContextWarn

	// ContextSummarize means the history must be summarized now.
	ContextSummarize
)

const (
	warnThreshold      = 0.85
	summarizeThreshold = 0.95
	warnStep           = 0.05
)

// SessionMetrics accumulates counters for one conversation.
type SessionMetrics struct {
	mu sync.Mutex

	totalPromptTokens     int
	totalCompletionTokens int
	currentPromptTokens   int
	estimatedCost         float64
	toolCalls             int
	llmCalls              int
	requestTime           time.Duration

	// lastWarnFraction is the usage fraction at the previous warning,
	// negative before any warning fired.
	lastWarnFraction float64

	limits *ModelLimits
	costs  *CostTable
}

// NewSessionMetrics creates counters backed by the given limit and cost
// tables; nil tables use the defaults.
func NewSessionMetrics(limits *ModelLimits, costs *CostTable) *SessionMetrics {
	if limits == nil {
		limits = NewModelLimits()
	}
	if costs == nil {
		costs = NewCostTable()
	}
	return &SessionMetrics{limits: limits, costs: costs, lastWarnFraction: -1}
}

// RecordCompletion folds one model response's usage into the session.
func (m *SessionMetrics) RecordCompletion(model string, usage models.Usage, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmCalls++
	m.totalPromptTokens += usage.PromptTokens
	m.totalCompletionTokens += usage.CompletionTokens
	m.currentPromptTokens = usage.PromptTokens
	m.estimatedCost += m.costs.Estimate(model, usage)
	m.requestTime += elapsed
}

// RecordToolCalls counts executed tool calls.
func (m *SessionMetrics) RecordToolCalls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls += n
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalPromptTokens     int
	TotalCompletionTokens int
	CurrentPromptTokens   int
	EstimatedCost         float64
	ToolCalls             int
	LLMCalls              int
	RequestTime           time.Duration
}

func (m *SessionMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		TotalPromptTokens:     m.totalPromptTokens,
		TotalCompletionTokens: m.totalCompletionTokens,
		CurrentPromptTokens:   m.currentPromptTokens,
		EstimatedCost:         m.estimatedCost,
		ToolCalls:             m.toolCalls,
		LLMCalls:              m.llmCalls,
		RequestTime:           m.requestTime,
	}
}

// Reset clears the counters after a summary replaced the history.
func (m *SessionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalPromptTokens = 0
	m.totalCompletionTokens = 0
	m.currentPromptTokens = 0
	m.estimatedCost = 0
	m.toolCalls = 0
	m.llmCalls = 0
	m.requestTime = 0
	m.lastWarnFraction = -1
}

// CheckContextWindow compares the most recent prompt size against the
// model's context window. Usage in [0.85, 0.95) yields a warning, rate
// limited to one per 5% change; usage at or above 0.95 demands a
// summary. The returned notice is human readable.
func (m *SessionMetrics) CheckContextWindow(provider, model string) (ContextAction, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.limits.ContextWindow(provider, model)
	fraction := float64(m.currentPromptTokens) / float64(window)

	switch {
	case fraction >= summarizeThreshold:
		return ContextSummarize, fmt.Sprintf(
			"Context window at %.0f%%; summarizing conversation to free space", fraction*100)
	case fraction >= warnThreshold:
		if m.lastWarnFraction >= 0 && fraction-m.lastWarnFraction < warnStep {
			return ContextOK, ""
		}
		m.lastWarnFraction = fraction
		return ContextWarn, fmt.Sprintf(
			"Context window at %.0f%%; consider /summary", fraction*100)
	default:
		return ContextOK, ""
	}
}
