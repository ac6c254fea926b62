package generator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/llmerrors"
	"storyqa/pkg/logx"
	"storyqa/pkg/testcase"
)

const bulletCriteria = "- User must log in\n- User should see dashboard"

type fakeClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	return llm.CompletionResponse{Content: f.reply, StopReason: "end_turn"}, nil
}

func (f *fakeClient) GetModelName() string { return "fake-model" }

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type countingObserver struct {
	paths []string
	cases []int
}

func (c *countingObserver) ObserveGeneration(path string, cases int) {
	c.paths = append(c.paths, path)
	c.cases = append(c.cases, cases)
}

func assertRuleCases(t *testing.T, out Outcome) {
	t.Helper()
	assert.Equal(t, PathRules, out.Path)
	require.Len(t, out.Cases, 2)
	assert.Equal(t, testcase.PriorityHigh, out.Cases[0].Priority)
	assert.Equal(t, testcase.PriorityMedium, out.Cases[1].Priority)
}

func TestGenerateWithoutModelUsesRules(t *testing.T) {
	out := New().Generate(context.Background(), "Login story", bulletCriteria)

	assertRuleCases(t, out)
	assert.Equal(t, "TC-1: Verify User must log in", out.Cases[0].Title)
	assert.Equal(t, "TC-2: Verify User should see dashboard", out.Cases[1].Title)
	assert.NoError(t, out.ModelErr)
}

func TestGenerateModelSuccess(t *testing.T) {
	client := &fakeClient{reply: "```json\n" + `[{"title":"Login","steps":["open"],"expectedResult":"in","priority":"High"}]` + "\n```"}
	obs := &countingObserver{}
	o := New(WithClient(client), WithLimits(2000, 0.4), WithObserver(obs))

	out := o.Generate(context.Background(), "Login story", bulletCriteria)

	assert.Equal(t, PathModel, out.Path)
	require.Len(t, out.Cases, 1)
	assert.Equal(t, "Login", out.Cases[0].Title)
	assert.NoError(t, out.ModelErr)

	require.Equal(t, 1, client.calls())
	req := client.requests[0]
	assert.Equal(t, 2000, req.MaxTokens)
	assert.InDelta(t, 0.4, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Acceptance Criteria:\n"+bulletCriteria)

	assert.Equal(t, []string{"model"}, obs.paths)
	assert.Equal(t, []int{1}, obs.cases)
}

func TestGenerateDebugLinesNameGenerator(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	logx.SetDebug(true)
	t.Cleanup(func() {
		logx.SetOutput(os.Stderr)
		logx.SetDebug(false)
	})

	client := &fakeClient{reply: `[{"title":"Login","steps":["open"]}]`}
	out := New(WithClient(client)).Generate(context.Background(), "Login story", bulletCriteria)
	require.Equal(t, PathModel, out.Path)

	assert.Contains(t, buf.String(), "[generator] DEBUG: [generator] model replied")
	assert.NotContains(t, buf.String(), "[unknown]")
}

func TestGenerateFallsBack(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		client  *fakeClient
		wantErr bool
	}{
		{"model error", context.Background(), &fakeClient{err: llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 401, "bad key")}, true},
		{"cancelled", canceled, &fakeClient{reply: "[]"}, true},
		{"empty parse", context.Background(), &fakeClient{reply: "I cannot help with that."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New(WithClient(tt.client)).Generate(tt.ctx, "Login story", bulletCriteria)

			assertRuleCases(t, out)
			if tt.wantErr {
				assert.Error(t, out.ModelErr)
			} else {
				assert.NoError(t, out.ModelErr)
			}
		})
	}
}

func TestGenerateCancelledSurfacesContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(WithClient(&fakeClient{reply: "[]"})).Generate(ctx, "story", bulletCriteria)
	assert.True(t, errors.Is(out.ModelErr, context.Canceled))
}

func TestGenerateEmptyPromptSkipsModel(t *testing.T) {
	client := &fakeClient{reply: `[{"title":"never"}]`}
	out := New(WithClient(client)).Generate(context.Background(), "  ", "")

	assert.Equal(t, 0, client.calls())
	assert.Equal(t, PathRules, out.Path)
	assert.NotNil(t, out.Cases)
	assert.Empty(t, out.Cases)
}

func TestGenerateBaseline(t *testing.T) {
	out := New(WithBaseline(true)).Generate(context.Background(), "Login story", bulletCriteria)
	require.Len(t, out.Cases, 4)
	assert.Equal(t, "TC-Positive: Verify basic functionality", out.Cases[2].Title)

	out = New(WithBaseline(true)).Generate(context.Background(), "", bulletCriteria)
	assert.Len(t, out.Cases, 2)
}

func TestGenerateConcurrentRunsAreIndependent(t *testing.T) {
	o := New(WithClient(&fakeClient{reply: `[{"title":"A"},{"title":"B"}]`}))

	var wg sync.WaitGroup
	results := make([]Outcome, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Generate(context.Background(), "story", "")
		}(i)
	}
	wg.Wait()

	for _, out := range results {
		require.Len(t, out.Cases, 2)
	}
	results[0].Cases[0].Title = "mutated"
	assert.Equal(t, "A", results[1].Cases[0].Title)
}

func TestStoryText(t *testing.T) {
	tests := []struct {
		summary, description, want string
	}{
		{"Login", "Users sign in", "Login\n\nUsers sign in"},
		{"Login", "  ", "Login"},
		{"", "Users sign in", "Users sign in"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StoryText(tt.summary, tt.description))
	}
}
