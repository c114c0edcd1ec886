package metrics

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/skein-dev/skein/pkg/models"
)

// TokenEstimator counts prompt tokens locally, used when a backend
// reports no usage. Uses the cl100k_base encoding as a reasonable
// cross-model approximation; falls back to a bytes/4 heuristic when the
// encoding is unavailable (offline first run).
type TokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenEstimator() *TokenEstimator { return &TokenEstimator{} }

func (e *TokenEstimator) encoding() *tiktoken.Tiktoken {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.enc = enc
		}
	})
	return e.enc
}

// CountText estimates the tokens in one string.
func (e *TokenEstimator) CountText(text string) int {
	if enc := e.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// CountMessages estimates prompt tokens for a transcript, with a small
// per-message framing overhead.
func (e *TokenEstimator) CountMessages(msgs []models.Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += e.CountText(m.Content.Text)
		for _, part := range m.Content.Parts {
			total += e.CountText(part.Text)
		}
		for _, call := range m.ToolCalls {
			total += e.CountText(call.Name) + e.CountText(call.Arguments)
		}
	}
	return total
}
