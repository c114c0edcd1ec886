package backend

import "github.com/skein-dev/skein/pkg/models"

// RawUsage carries provider usage counters under the two common naming
// schemes before normalization.
type RawUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NormalizeUsage maps provider counters onto the canonical Usage shape.
// prompt/completion naming wins; input/output is the fallback. A missing
// total is computed from the parts.
func NormalizeUsage(raw RawUsage) models.Usage {
	usage := models.Usage{
		PromptTokens:     raw.PromptTokens,
		CompletionTokens: raw.CompletionTokens,
		TotalTokens:      raw.TotalTokens,
	}
	if usage.PromptTokens == 0 && raw.InputTokens > 0 {
		usage.PromptTokens = raw.InputTokens
	}
	if usage.CompletionTokens == 0 && raw.OutputTokens > 0 {
		usage.CompletionTokens = raw.OutputTokens
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}
