package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "llama-3.1-8b-instant",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "[{\"title\":\"TC-01\"}]"}, "finish_reason": "stop"}]
}`

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request() llm.CompletionRequest {
	return llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("You are a QA test engineer."),
		llm.NewUserMessage("Write tests"),
	})
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, completionBody, &seen)

	client := NewClient(llm.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", ModelName: "llama-3.1-8b-instant"})
	resp, err := client.Complete(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, `[{"title":"TC-01"}]`, resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)

	assert.Equal(t, "llama-3.1-8b-instant", seen["model"])
	assert.InDelta(t, 0.9, seen["temperature"], 0.001)
	assert.EqualValues(t, 8000, seen["max_tokens"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestCompleteUsesConfiguredMaxTokens(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, completionBody, &seen)

	req := request()
	req.MaxTokens = 0
	client := NewClient(llm.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", ModelName: "m", MaxTokens: 512})
	_, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 512, seen["max_tokens"])
}

func TestCompleteNoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)

	_, err := NewClient(llm.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", ModelName: "m"}).Complete(context.Background(), request())
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
}

func TestCompleteClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   llmerrors.ErrorType
	}{
		{http.StatusUnauthorized, llmerrors.ErrorTypeAuth},
		{http.StatusTooManyRequests, llmerrors.ErrorTypeRateLimit},
		{http.StatusBadRequest, llmerrors.ErrorTypeBadPrompt},
		{http.StatusBadGateway, llmerrors.ErrorTypeTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, tt.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`, nil)

			_, err := NewClient(llm.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", ModelName: "m"}).Complete(context.Background(), request())
			require.Error(t, err)
			assert.Equal(t, tt.want, llmerrors.TypeOf(err))
		})
	}
}

func TestCompleteCanceled(t *testing.T) {
	srv := newServer(t, http.StatusOK, completionBody, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(llm.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", ModelName: "m"}).Complete(ctx, request())
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))
}

func TestGetModelName(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", NewClient(llm.LLMConfig{APIKey: "k", BaseURL: "", ModelName: "gpt-4o-mini"}).GetModelName())
}
