// Package logging provides request logging middleware for LLM clients.
package logging

import (
	"context"
	"time"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
	"storyqa/pkg/logx"
)

// maxLoggedPrompt bounds how much of each message reaches the debug log.
const maxLoggedPrompt = 2000

// Middleware logs each request at debug level under the "llm" domain and
// failures as warnings. Message content is sanitized before logging.
func Middleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if logx.IsDebugEnabledForDomain("llm") {
					for i := range req.Messages {
						logx.Debug(ctx, "llm", "%s message: %s", req.Messages[i].Role,
							llmerrors.SanitizePrompt(req.Messages[i].Content, maxLoggedPrompt))
					}
				}

				start := time.Now()
				resp, err := next.Complete(ctx, req)
				if err != nil {
					logger.Warn("model %s failed after %dms: %v", next.GetModelName(), time.Since(start).Milliseconds(), err)
					return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
				}
				if resp.StopReason == "max_tokens" {
					logger.Warn("model %s hit the output token limit; reply may be truncated", next.GetModelName())
				}
				logx.Debug(ctx, "llm", "reply (%d chars, stop=%s): %s", len(resp.Content), resp.StopReason,
					llmerrors.SanitizePrompt(resp.Content, maxLoggedPrompt))
				return resp, nil
			},
			next.GetModelName,
		)
	}
}
