package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/logx"
)

func TestMiddlewareLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(os.Stderr) })

	base := llm.WrapClient(
		func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{}, errors.New("upstream down")
		},
		func() string { return "test-model" },
	)

	_, err := llm.Chain(base, Middleware(logx.NewLogger("llm-test"))).Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "[llm-test] WARN: model test-model failed")
	assert.Contains(t, buf.String(), "upstream down")
}

func TestMiddlewarePassesReplyThrough(t *testing.T) {
	base := llm.WrapClient(
		func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "[]", StopReason: "end_turn"}, nil
		},
		func() string { return "test-model" },
	)

	resp, err := llm.Chain(base, Middleware(nil)).Complete(context.Background(),
		llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)
}
