package metrics

import (
	"strings"
	"sync"

	"github.com/skein-dev/skein/pkg/models"
)

// modelCost holds USD prices per million tokens.
type modelCost struct {
	prompt     float64
	completion float64
}

// CostTable estimates spend from usage counters. Prices are
// approximations for budgeting, not billing.
type CostTable struct {
	mu    sync.RWMutex
	costs map[string]modelCost
}

var defaultCosts = map[string]modelCost{
	"gpt-4o":          {prompt: 2.50, completion: 10.00},
	"gpt-4o-mini":     {prompt: 0.15, completion: 0.60},
	"claude-sonnet-4": {prompt: 3.00, completion: 15.00},
	"claude-opus-4":   {prompt: 15.00, completion: 75.00},
}

func NewCostTable() *CostTable {
	costs := make(map[string]modelCost, len(defaultCosts))
	for k, v := range defaultCosts {
		costs[k] = v
	}
	return &CostTable{costs: costs}
}

// Set overrides a model's per-million-token prices.
func (t *CostTable) Set(model string, promptPerM, completionPerM float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.costs[model] = modelCost{prompt: promptPerM, completion: completionPerM}
}

// Estimate returns the approximate USD cost of one response. Unknown
// models cost zero.
func (t *CostTable) Estimate(model string, usage models.Usage) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cost, ok := t.costs[model]
	if !ok {
		// Providers often version model names with suffixes.
		for name, c := range t.costs {
			if strings.HasPrefix(model, name) {
				cost, ok = c, true
				break
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*cost.prompt/1e6 +
		float64(usage.CompletionTokens)*cost.completion/1e6
}
