package metrics

import (
	"context"
	"strings"
	"time"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
	"storyqa/pkg/logx"
	"storyqa/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor counts tokens with the shared tiktoken encoder.
//
//nolint:gocritic // value parameters match UsageExtractor
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteString("\n")
	}
	return utils.CountTokensSimple(prompt.String()), utils.CountTokensSimple(resp.Content)
}

// Middleware observes every request that passes through it and, when a
// logger is given, logs one line per request with its token usage.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)

				obs := Observation{Model: next.GetModelName(), Duration: time.Since(start)}
				if err == nil {
					obs.PromptTokens, obs.CompletionTokens = usageExtractor(req, resp)
				} else {
					obs.ErrorType = llmerrors.TypeOf(err).String()
				}
				recorder.ObserveRequest(obs)

				if logger != nil {
					if obs.Success() {
						logger.Info("Model request: model=%s tokens=%d+%d duration=%dms",
							obs.Model, obs.PromptTokens, obs.CompletionTokens, obs.Duration.Milliseconds())
					} else {
						logger.Info("Model request failed: model=%s error_type=%s duration=%dms",
							obs.Model, obs.ErrorType, obs.Duration.Milliseconds())
					}
				}

				return resp, err //nolint:wrapcheck // classified errors pass through unchanged
			},
			next.GetModelName,
		)
	}
}
