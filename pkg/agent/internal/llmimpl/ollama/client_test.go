package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
)

func TestNewOllamaClient(t *testing.T) {
	tests := []struct {
		name     string
		hostURL  string
		wantHost string
	}{
		{"valid host", "http://localhost:11434", "http://localhost:11434"},
		{"custom host", "http://192.168.1.100:11434", "http://192.168.1.100:11434"},
		{"empty uses default", "", DefaultHost},
		{"invalid URL falls back to default", "not-a-valid-url", DefaultHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOllamaClient(llm.LLMConfig{BaseURL: tt.hostURL, ModelName: "llama3.1:8b"})
			require.NotNil(t, client)
			assert.Equal(t, "llama3.1:8b", client.GetModelName())
			assert.Equal(t, tt.wantHost, client.(*Client).hostURL)
		})
	}
}

func TestComplete(t *testing.T) {
	var seen api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"TC-1: ok"},"done":true,"done_reason":"stop"}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(llm.LLMConfig{BaseURL: srv.URL, ModelName: "llama3.1:8b"})
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("hi"),
	}))
	require.NoError(t, err)

	assert.Equal(t, "TC-1: ok", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	require.NotNil(t, seen.Stream)
	assert.False(t, *seen.Stream)
}

func TestCompleteModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaClient(llm.LLMConfig{BaseURL: srv.URL, ModelName: "nope"}).Complete(context.Background(),
		llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, llmerrors.ErrorTypeBadPrompt, llmerrors.TypeOf(err))
}

func TestGetStopReason(t *testing.T) {
	tests := []struct {
		resp api.ChatResponse
		want string
	}{
		{api.ChatResponse{Done: false}, "incomplete"},
		{api.ChatResponse{Done: true, DoneReason: "stop"}, "end_turn"},
		{api.ChatResponse{Done: true}, "end_turn"},
		{api.ChatResponse{Done: true, DoneReason: "length"}, "max_tokens"},
		{api.ChatResponse{Done: true, DoneReason: "load"}, "load"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getStopReason(&tt.resp))
	}
}
