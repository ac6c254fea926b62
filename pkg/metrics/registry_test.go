package metrics

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmmetrics "storyqa/pkg/agent/middleware/metrics"
)

func TestObserveGeneration(t *testing.T) {
	r := NewRegistry()
	r.ObserveGeneration("model", 10)
	r.ObserveGeneration("rules", 2)
	r.ObserveGeneration("model", 8)

	assert.InDelta(t, 2, testutil.ToFloat64(r.generations.WithLabelValues("model")), 0)
	assert.InDelta(t, 18, testutil.ToFloat64(r.cases.WithLabelValues("model")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.generations.WithLabelValues("rules")), 0)
}

func TestObservePublished(t *testing.T) {
	r := NewRegistry()
	r.ObservePublished("XRM", true)
	r.ObservePublished("XRM", false)

	assert.InDelta(t, 1, testutil.ToFloat64(r.published.WithLabelValues("XRM", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.published.WithLabelValues("XRM", "error")), 0)
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveGeneration("rules", 1)
	r.ObservePublished("XRM", true)
	assert.NotNil(t, r.Recorder())
}

func TestWriteTextSkipsRuntimeFamilies(t *testing.T) {
	r := NewRegistry()
	r.ObserveGeneration("rules", 3)
	r.Recorder().ObserveRequest(llmmetrics.Observation{Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 20, Duration: time.Second})

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, `storyqa_generations_total{path="rules"} 1`)
	assert.Contains(t, out, `llm_tokens_total{model="gpt-4o",type="completion"} 20`)
	assert.NotContains(t, out, "go_goroutines")
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewRegistry()
	r.ObserveGeneration("model", 1)

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "storyqa_generations_total")
	assert.Contains(t, string(body), "go_goroutines")
}
