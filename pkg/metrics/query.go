package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// Usage is aggregated model and generation activity as seen by a
// Prometheus server scraping one or more storyqa instances.
type Usage struct {
	Model            string           `json:"model,omitempty"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	Requests         int64            `json:"requests"`
	FailedRequests   int64            `json:"failed_requests"`
	Generations      map[string]int64 `json:"generations,omitempty"`
	PublishedTests   int64            `json:"published_tests"`
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetUsage retrieves totals across all models.
func (q *QueryService) GetUsage(ctx context.Context) (*Usage, error) {
	usage := &Usage{Generations: make(map[string]int64)}

	scalars := []struct {
		query  string
		target *int64
	}{
		{`sum(llm_tokens_total{type="prompt"})`, &usage.PromptTokens},
		{`sum(llm_tokens_total{type="completion"})`, &usage.CompletionTokens},
		{`sum(llm_requests_total)`, &usage.Requests},
		{`sum(llm_requests_total{status="error"})`, &usage.FailedRequests},
		{`sum(storyqa_published_tests_total{status="success"})`, &usage.PublishedTests},
	}
	for _, s := range scalars {
		v, err := q.scalar(ctx, s.query)
		if err != nil {
			return nil, err
		}
		*s.target = v
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	byPath, err := q.vector(ctx, `sum by (path) (storyqa_generations_total)`)
	if err != nil {
		return nil, err
	}
	for _, sample := range byPath {
		usage.Generations[string(sample.Metric["path"])] = int64(sample.Value)
	}

	return usage, nil
}

// GetUsageByModel retrieves token and request totals broken down by model.
func (q *QueryService) GetUsageByModel(ctx context.Context) (map[string]*Usage, error) {
	result := make(map[string]*Usage)
	get := func(name string) *Usage {
		u, ok := result[name]
		if !ok {
			u = &Usage{Model: name}
			result[name] = u
		}
		return u
	}

	prompt, err := q.vector(ctx, `sum by (model) (llm_tokens_total{type="prompt"})`)
	if err != nil {
		return nil, err
	}
	for _, sample := range prompt {
		get(string(sample.Metric["model"])).PromptTokens = int64(sample.Value)
	}

	completion, err := q.vector(ctx, `sum by (model) (llm_tokens_total{type="completion"})`)
	if err != nil {
		return nil, err
	}
	for _, sample := range completion {
		get(string(sample.Metric["model"])).CompletionTokens = int64(sample.Value)
	}

	requests, err := q.vector(ctx, `sum by (model) (llm_requests_total)`)
	if err != nil {
		return nil, err
	}
	for _, sample := range requests {
		get(string(sample.Metric["model"])).Requests = int64(sample.Value)
	}

	for _, u := range result {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return result, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	value, warnings, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", query, err)
	}
	for _, w := range warnings {
		logger.Warn("prometheus warning for %q: %s", query, w)
	}
	vector, ok := value.(model.Vector)
	if !ok {
		return nil, nil
	}
	return vector, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	vector, err := q.vector(ctx, query)
	if err != nil || len(vector) == 0 {
		return 0, err
	}
	return int64(vector[0].Value), nil
}
