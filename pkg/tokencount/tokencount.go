// Package tokencount estimates the token footprint of text, adapted from the
// teacher's tiktoken wrapper, for deterministic offline budget bookkeeping.
// The orchestrator uses it for the cycle summary when Finalize receives no
// caller-supplied usage.
package tokencount

import (
	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with a tiktoken codec, falling back to a
// char-based heuristic if the codec is unavailable.
type Estimator struct {
	codec tokenizer.Codec
}

// New returns an Estimator backed by the GPT-4 codec. If the codec cannot
// be loaded, Count falls back to the char-based heuristic for every call.
func New() *Estimator {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &Estimator{}
	}
	return &Estimator{codec: codec}
}

// Count estimates the number of tokens in text. Falls back to len(text)/4
// when no codec is loaded or encoding fails.
func (e *Estimator) Count(text string) int {
	if e.codec == nil {
		return fallback(text)
	}
	count, err := e.codec.Count(text)
	if err != nil {
		return fallback(text)
	}
	return count
}

func fallback(text string) int {
	return len(text) / 4
}

// EstimateOrUse returns usageTokens if non-nil (caller-supplied usage
// always takes precedence so token accounting stays deterministic under
// replay); otherwise it estimates text's token count.
func (e *Estimator) EstimateOrUse(usageTokens *int, text string) int {
	if usageTokens != nil {
		return *usageTokens
	}
	return e.Count(text)
}
