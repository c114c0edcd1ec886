package models

// Usage is a normalized token accounting snapshot from one model call.
// PromptTokens/CompletionTokens are the canonical fields; backends that
// report input/output pairs are normalized before this struct is built.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost,omitempty"`
}

// Add accumulates another usage snapshot into this one.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.EstimatedCost += other.EstimatedCost
}

// Clone returns a copy, or nil for nil.
func (u *Usage) Clone() *Usage {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
