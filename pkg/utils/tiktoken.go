// Package utils provides token counting and identifier helpers.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with the GPT-4 encoding. Other providers'
// tokenizers are close enough for budgeting.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model name is only used in errors.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text, estimating 4 characters
// per token when the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

var (
	sharedCounter     *TokenCounter
	sharedCounterOnce sync.Once
)

// CountTokensSimple counts tokens with a lazily built shared counter.
func CountTokensSimple(text string) int {
	sharedCounterOnce.Do(func() {
		sharedCounter, _ = NewTokenCounter("gpt-4")
	})
	return sharedCounter.CountTokens(text)
}

// TruncateToTokenLimit shortens text to roughly limit tokens, cutting on a
// rune boundary and appending "...". A limit <= 0 disables truncation.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	current := tc.CountTokens(text)
	if current <= limit {
		return text
	}

	runes := []rune(text)
	ratio := float64(limit) / float64(current)
	keep := int(float64(len(runes)) * ratio * 0.9) // 0.9 safety margin
	if keep >= len(runes) {
		return text
	}
	return string(runes[:keep]) + "..."
}
