package llm

import (
	"context"
	"errors"
	"testing"
)

type mockLLMClient struct {
	completeFunc     func(context.Context, CompletionRequest) (CompletionResponse, error)
	getModelNameFunc func() string
}

func (m *mockLLMClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return m.completeFunc(ctx, req)
}

func (m *mockLLMClient) GetModelName() string {
	return m.getModelNameFunc()
}

func TestWrapClient(t *testing.T) {
	completeCalled := false
	client := WrapClient(
		func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			completeCalled = true
			return CompletionResponse{Content: "wrapped"}, nil
		},
		func() string { return "wrapped-model" },
	)

	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("test")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completeCalled {
		t.Error("Complete function was not called")
	}
	if resp.Content != "wrapped" {
		t.Errorf("expected 'wrapped', got %q", resp.Content)
	}
	if got := client.GetModelName(); got != "wrapped-model" {
		t.Errorf("expected 'wrapped-model', got %q", got)
	}
}

func TestChainOrder(t *testing.T) {
	var calls []string
	base := &mockLLMClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			calls = append(calls, "base")
			return CompletionResponse{Content: "base"}, nil
		},
		getModelNameFunc: func() string { return "base-model" },
	}
	tag := func(name string) Middleware {
		return func(next LLMClient) LLMClient {
			return WrapClient(
				func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
					calls = append(calls, name)
					resp, err := next.Complete(ctx, req)
					resp.Content = name + "(" + resp.Content + ")"
					return resp, err
				},
				next.GetModelName,
			)
		}
	}

	client := Chain(base, tag("outer"), tag("inner"))
	resp, err := client.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer", "inner", "base"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
	if resp.Content != "outer(inner(base))" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if client.GetModelName() != "base-model" {
		t.Errorf("model name not delegated: %q", client.GetModelName())
	}
}

func TestChainNoMiddleware(t *testing.T) {
	sentinel := errors.New("boom")
	base := &mockLLMClient{
		completeFunc: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
			return CompletionResponse{}, sentinel
		},
		getModelNameFunc: func() string { return "m" },
	}
	if _, err := Chain(base).Complete(context.Background(), CompletionRequest{}); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}
