package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
)

func serve(t *testing.T, status int, body string, seen *map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func request() llm.CompletionRequest {
	return llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("You are a QA test engineer."),
		llm.NewUserMessage("Write tests"),
	})
}

func TestComplete(t *testing.T) {
	var seen map[string]any
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"[]"}]},"finishReason":"STOP"}]}`
	url := serve(t, http.StatusOK, body, &seen)

	resp, err := NewGeminiClient(llm.LLMConfig{APIKey: "test-key", BaseURL: url, ModelName: "gemini-2.0-flash"}).Complete(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Contains(t, seen, "systemInstruction")
	contents, ok := seen["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

func TestCompleteNoCandidates(t *testing.T) {
	url := serve(t, http.StatusOK, `{"candidates":[]}`, nil)

	_, err := NewGeminiClient(llm.LLMConfig{APIKey: "test-key", BaseURL: url, ModelName: "gemini-2.0-flash"}).Complete(context.Background(), request())
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
}

func TestCompleteClassifiesStatus(t *testing.T) {
	body := `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`
	url := serve(t, http.StatusTooManyRequests, body, nil)

	_, err := NewGeminiClient(llm.LLMConfig{APIKey: "test-key", BaseURL: url, ModelName: "gemini-2.0-flash"}).Complete(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, llmerrors.ErrorTypeRateLimit, llmerrors.TypeOf(err))
}

func TestGetModelName(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", NewGeminiClient(llm.LLMConfig{APIKey: "k", BaseURL: "", ModelName: "gemini-2.0-flash"}).GetModelName())
}
