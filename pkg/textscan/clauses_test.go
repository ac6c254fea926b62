package textscan

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGherkinClauses(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single line chain",
			in:   "Given a user When they log in Then the dashboard shows",
			want: []string{"a user", "they log in", "the dashboard shows"},
		},
		{
			name: "case insensitive",
			in:   "given cart is empty then checkout is disabled",
			want: []string{"cart is empty", "checkout is disabled"},
		},
		{
			name: "clauses stop at line breaks",
			in:   "Given a user\nWhen they log in\nThen it works",
			want: []string{"a user", "they log in", "it works"},
		},
		{
			name: "keyword inside a word ends a clause",
			in:   "When user understands the terms",
			want: []string{"user underst"},
		},
		{
			name: "no keywords",
			in:   "User can log in",
			want: nil,
		},
		{
			name: "trailing keyword has no body",
			in:   "Given ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clauses(tt.in, GherkinLead, GherkinStop))
		})
	}
}

func TestNumberedStepClauses(t *testing.T) {
	got := Clauses("Steps: 1. Open app 2. Enter email\nStep 3: Tap login", NumberedStepLead, NumberedStepStop)
	assert.Equal(t, []string{"Open app", "Enter email", "Tap login"}, got)
}

func TestFirstCapture(t *testing.T) {
	re := regexp.MustCompile(`(?i)(?:should|must)\s+([^.\n]+)`)

	got, ok := FirstCapture(re, "The page must load fast. It should not flicker.")
	assert.True(t, ok)
	assert.Equal(t, "load fast", got)

	_, ok = FirstCapture(re, "nothing here")
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 50))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
}
