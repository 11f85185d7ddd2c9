// Package tokenbudget estimates token counts (Estimator) and truncates
// context text by character count (TruncateToChars). Estimator is grounded
// on Tangerg-lynx/ai/tokenizer/tiktoken.go's use of
// github.com/pkoukk/tiktoken-go.
package tokenbudget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens the way the downstream LLM would tokenize them.
// Korean text does not round-trip through English tokenizers exactly, but
// cl100k_base gives a stable, monotonic estimate good enough for budgeting
// truncation — the pipeline never needs an exact count, only "will this
// fit".
type Estimator struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
}

// NewEstimator builds an Estimator using the cl100k_base encoding (the
// encoding used by gpt-3.5/4-class models).
func NewEstimator() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(text, nil, nil))
}

// TruncateToChars truncates text to at most maxChars runes, used for
// format_context_length / evaluator_context_length (spec §6.5) where the
// configuration surface is expressed in characters rather than tokens.
func TruncateToChars(text string, maxChars int) string {
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars])
}
