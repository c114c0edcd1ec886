package metrics

import "sync"

// DefaultContextWindow is used when a model has no recorded limit.
const DefaultContextWindow = 128000

// ModelLimits caches per-provider context-window sizes.
type ModelLimits struct {
	mu      sync.RWMutex
	windows map[string]int
}

// known limits, keyed provider/model. Extend via Set.
var defaultWindows = map[string]int{
	"openai/gpt-4o":             128000,
	"openai/gpt-4o-mini":        128000,
	"anthropic/claude-sonnet-4": 200000,
	"anthropic/claude-opus-4":   200000,
	"google/gemini-2.0-flash":   1000000,
	"ollama/llama3.1":           131072,
	"ollama/qwen2.5-coder":      32768,
}

func NewModelLimits() *ModelLimits {
	windows := make(map[string]int, len(defaultWindows))
	for k, v := range defaultWindows {
		windows[k] = v
	}
	return &ModelLimits{windows: windows}
}

// Set overrides or adds a model's context window.
func (l *ModelLimits) Set(provider, model string, window int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows[provider+"/"+model] = window
}

// ContextWindow returns the model's context window, falling back to
// DefaultContextWindow for unknown models.
func (l *ModelLimits) ContextWindow(provider, model string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.windows[provider+"/"+model]; ok && w > 0 {
		return w
	}
	return DefaultContextWindow
}
