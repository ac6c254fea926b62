// Package openaicompat provides a chat completions client for OpenAI and
// OpenAI-compatible endpoints such as Groq.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
)

// Client wraps the official OpenAI Go client to implement llm.LLMClient.
type Client struct {
	client openai.Client
	cfg    llm.LLMConfig
}

// NewClient creates a client for cfg.BaseURL, or the SDK default endpoint.
// The SDK's own retries are disabled; one call is one request.
func NewClient(cfg llm.LLMConfig) llm.LLMClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Complete implements llm.LLMClient using the chat completions API.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.ModelName),
		Messages:    messages,
		Temperature: openai.Float(float64(in.Temperature)),
	}
	if maxTokens := c.cfg.MaxTokensFor(&in); maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "no choices in chat completion response")
	}

	choice := resp.Choices[0]
	return llm.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: stopReason(string(choice.FinishReason)),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *Client) GetModelName() string {
	return c.cfg.ModelName
}

func stopReason(finish string) string {
	switch finish {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return finish
	}
}

// classifyError maps SDK errors to llmerrors types.
func classifyError(err error) error {
	if ctxErr := llmerrors.FromContext(err); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if classified := llmerrors.FromStatus(apiErr.StatusCode, err); classified != nil {
			return classified
		}
		return &llmerrors.Error{
			Type:       llmerrors.ErrorTypeUnknown,
			StatusCode: apiErr.StatusCode,
			Message:    fmt.Sprintf("chat completion failed with status %d", apiErr.StatusCode),
			Err:        err,
		}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout") || strings.Contains(errStr, "eof") {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or connection error")
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "chat completion failed")
}
