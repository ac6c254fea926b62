package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("llama-3.1-8b-instant")
	require.NoError(t, err)

	tests := []struct {
		text      string
		minTokens int
		maxTokens int
	}{
		{"", 0, 0},
		{"Hello", 1, 2},
		{"Hello world", 2, 3},
		{strings.Repeat("word ", 100), 90, 110},
	}
	for _, tt := range tests {
		got := counter.CountTokens(tt.text)
		assert.GreaterOrEqual(t, got, tt.minTokens, tt.text)
		assert.LessOrEqual(t, got, tt.maxTokens, tt.text)
	}
}

func TestCountTokensSimpleMatchesCounter(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	text := "Users can reset their password from the login page."
	assert.Equal(t, counter.CountTokens(text), CountTokensSimple(text))
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	short := "fits easily"
	assert.Equal(t, short, counter.TruncateToTokenLimit(short, 100))
	assert.Equal(t, short, counter.TruncateToTokenLimit(short, 0))

	long := strings.Repeat("word ", 500)
	got := counter.TruncateToTokenLimit(long, 50)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, len(got), len(long))
	assert.LessOrEqual(t, counter.CountTokens(got), 60)
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "PROJ-12", SanitizeIdentifier(" PROJ-12 "))
	assert.Equal(t, "a-b-c-d", SanitizeIdentifier("a:b/c\\d"))
}

func TestGoIdentifier(t *testing.T) {
	assert.Equal(t, "Proj12Login", GoIdentifier("PROJ-12 login", "Story"))
	assert.Equal(t, "Story", GoIdentifier("---", "Story"))
	assert.Equal(t, "Story12", GoIdentifier("12", "Story"))
}
