package agent

import (
	"errors"
	"fmt"
	"os"

	"storyqa/pkg/agent/internal/llmimpl/anthropic"
	"storyqa/pkg/agent/internal/llmimpl/google"
	"storyqa/pkg/agent/internal/llmimpl/ollama"
	"storyqa/pkg/agent/internal/llmimpl/openaicompat"
	"storyqa/pkg/agent/llm"
	"storyqa/pkg/agent/middleware/logging"
	"storyqa/pkg/agent/middleware/metrics"
	"storyqa/pkg/agent/middleware/ratelimit"
	"storyqa/pkg/agent/middleware/timeout"
	"storyqa/pkg/config"
	"storyqa/pkg/limiter"
	"storyqa/pkg/logx"
)

// ErrModelUnavailable means generation must run on rules alone: the model
// is disabled in config or its provider has no API key.
var ErrModelUnavailable = errors.New("model unavailable")

// Limits are the per-request settings derived from config.
type Limits struct {
	MaxTokens   int
	Temperature float32
}

// LimitsFor caps the configured max tokens at the model's known output limit.
func LimitsFor(cfg *config.Config) Limits {
	maxTokens := cfg.Model.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	if info, ok := config.GetModelInfo(cfg.Model.Name); ok && info.MaxOutputTokens > 0 && maxTokens > info.MaxOutputTokens {
		maxTokens = info.MaxOutputTokens
	}
	temperature := cfg.Model.Temperature
	if temperature == 0 {
		temperature = llm.TemperatureDefault
	}
	return Limits{MaxTokens: maxTokens, Temperature: temperature}
}

// NewClient builds the configured provider client with its middleware chain:
// logging -> metrics -> rate limit -> timeout -> provider. A nil recorder records nothing.
func NewClient(cfg *config.Config, secrets *config.SecretStore, recorder metrics.Recorder) (llm.LLMClient, error) {
	if cfg.Model.Disabled {
		return nil, fmt.Errorf("%w: disabled in config", ErrModelUnavailable)
	}

	provider := cfg.Model.Provider
	if provider == "" {
		p, err := config.GetModelProvider(cfg.Model.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to determine provider for model %s: %w", cfg.Model.Name, err)
		}
		provider = p
	}

	var apiKey string
	if config.RequiresAPIKey(provider) {
		key, err := secrets.First(config.APIKeyNames(provider)...)
		if err != nil {
			return nil, fmt.Errorf("%w: no API key for %s", ErrModelUnavailable, provider)
		}
		apiKey = key
	}

	limits := LimitsFor(cfg)
	llmCfg := llm.LLMConfig{
		APIKey:      apiKey,
		ModelName:   cfg.Model.Name,
		BaseURL:     cfg.Model.BaseURL,
		MaxTokens:   limits.MaxTokens,
		Temperature: limits.Temperature,
	}
	if provider == config.ProviderOllama {
		llmCfg.BaseURL = cfg.OllamaHost(os.Getenv)
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}

	var raw llm.LLMClient
	switch provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		raw = openaicompat.NewClient(llmCfg)
	case config.ProviderAnthropic:
		raw = anthropic.NewClaudeClient(llmCfg)
	case config.ProviderGoogle:
		raw = google.NewGeminiClient(llmCfg)
	case config.ProviderOllama:
		raw = ollama.NewOllamaClient(llmCfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if recorder == nil {
		recorder = metrics.Nop()
	}
	logger := logx.NewLogger("model")

	return llm.Chain(raw,
		logging.Middleware(logger),
		metrics.Middleware(recorder, nil, logger),
		ratelimit.Middleware(limiter.FromConfig(cfg), recorder),
		timeout.Middleware(cfg.Model.Timeout),
	), nil
}
