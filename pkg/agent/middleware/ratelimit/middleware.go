// Package ratelimit rejects model requests that would exceed the model's
// token or concurrency limits.
package ratelimit

import (
	"context"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
	"storyqa/pkg/agent/middleware/metrics"
	"storyqa/pkg/limiter"
	"storyqa/pkg/utils"
)

// Throttle reasons passed to the recorder.
const (
	ReasonConcurrency = "concurrency"
	ReasonTokens      = "tokens"
)

// Middleware checks l before every request. Rejections are rate limit
// errors, are counted on recorder, and never reach the provider. A nil
// limiter disables the check.
func Middleware(l *limiter.Limiter, recorder metrics.Recorder) llm.Middleware {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return func(next llm.LLMClient) llm.LLMClient {
		if l == nil {
			return next
		}
		reject := func(reason string, err error) (llm.CompletionResponse, error) {
			recorder.IncThrottle(next.GetModelName(), reason)
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, err.Error())
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if err := l.Acquire(); err != nil {
					return reject(ReasonConcurrency, err)
				}
				defer func() { _ = l.Release() }()

				if err := l.Reserve(PromptTokens(req)); err != nil {
					return reject(ReasonTokens, err)
				}
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}

// PromptTokens estimates the tokens a request sends.
func PromptTokens(req llm.CompletionRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += utils.CountTokensSimple(m.Content)
	}
	return total
}
