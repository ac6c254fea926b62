// Package llm provides interfaces and types for language model client implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens bounds the model's reply for test case generation.
	DefaultMaxTokens = 8000

	// TemperatureDefault leaves room for varied test ideas.
	TemperatureDefault = 0.9
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string // first choice text
	StopReason string // "end_turn", "max_tokens", provider-specific otherwise
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // name shared with every provider package
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// SplitSystem separates system messages, joined by blank lines, from the rest.
// Providers with a dedicated system parameter use it.
func SplitSystem(messages []CompletionMessage) (system string, rest []CompletionMessage) {
	for i := range messages {
		if messages[i].Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += messages[i].Content
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

// LLMConfig is what a provider client is constructed from. BaseURL is the
// API endpoint, or the server address for local runtimes; empty means the
// provider default.
type LLMConfig struct { //nolint:revive // name shared with LLMClient
	APIKey      string
	ModelName   string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// MaxTokensFor returns the request's max tokens, or the configured value
// when the request leaves it unset.
func (c *LLMConfig) MaxTokensFor(req *CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.MaxTokens
}

// Validate validates the LLM configuration. An empty key is allowed for
// providers that need none.
func (c *LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
