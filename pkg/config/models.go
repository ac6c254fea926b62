package config

import (
	"fmt"
	"strings"
)

// Providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Secret names. Provider-specific names are consulted after MODEL_API_KEY.
const (
	SecretJiraAPIToken    = "JIRA_API_TOKEN"
	SecretModelAPIKey     = "MODEL_API_KEY"
	EnvGroqAPIKey         = "GROQ_API_KEY"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	EnvGoogleAPIKey       = "GEMINI_API_KEY"
	EnvOllamaHost         = "OLLAMA_HOST"
	defaultOllamaHostName = "http://localhost:11434"
)

//nolint:gochecknoglobals // static provider table
var providerNames = map[string]struct {
	defaultModel string
	keyEnv       string
}{
	ProviderGroq:      {DefaultModelName, EnvGroqAPIKey},
	ProviderOpenAI:    {"gpt-4o-mini", EnvOpenAIAPIKey},
	ProviderAnthropic: {"claude-3-5-haiku-latest", EnvAnthropicAPIKey},
	ProviderGoogle:    {"gemini-2.0-flash", EnvGoogleAPIKey},
	ProviderOllama:    {"llama3.1:8b", ""},
}

// ModelInfo contains static information about a known model.
type ModelInfo struct {
	Provider         string
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels maps model names to providers and limits. Unknown models are
// inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // static model registry
var KnownModels = map[string]ModelInfo{
	"llama-3.1-8b-instant":    {Provider: ProviderGroq, MaxContextTokens: 131072, MaxOutputTokens: 131072},
	"llama-3.3-70b-versatile": {Provider: ProviderGroq, MaxContextTokens: 131072, MaxOutputTokens: 32768},
	"gpt-4o":                  {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 16384},
	"gpt-4o-mini":             {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 16384},
	"claude-3-5-haiku-latest": {Provider: ProviderAnthropic, MaxContextTokens: 200000, MaxOutputTokens: 8192},
	"claude-sonnet-4-5":       {Provider: ProviderAnthropic, MaxContextTokens: 200000, MaxOutputTokens: 8192},
	"gemini-2.0-flash":        {Provider: ProviderGoogle, MaxContextTokens: 1048576, MaxOutputTokens: 8192},
	"gemini-2.5-flash":        {Provider: ProviderGoogle, MaxContextTokens: 1048576, MaxOutputTokens: 65536},
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
//
//nolint:gochecknoglobals // static inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"phi", ProviderOllama},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// GetModelProvider returns the provider for a model, checking KnownModels
// first and then ProviderPatterns.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match - set model.provider", modelName)
}

// GetModelInfo returns the ModelInfo for a model, or conservative defaults
// and false when the model is not in KnownModels.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}
	provider, _ := GetModelProvider(modelName)
	return ModelInfo{
		Provider:         provider,
		MaxContextTokens: 32000,
		MaxOutputTokens:  4096,
	}, false
}

// DefaultModelFor returns the default model of a provider.
func DefaultModelFor(provider string) string {
	if p, ok := providerNames[provider]; ok {
		return p.defaultModel
	}
	return DefaultModelName
}

// RequiresAPIKey reports whether the provider needs a key.
func RequiresAPIKey(provider string) bool {
	return provider != ProviderOllama
}

// APIKeyNames lists the secret names consulted for a provider's key, in order.
func APIKeyNames(provider string) []string {
	names := []string{SecretModelAPIKey}
	if p, ok := providerNames[provider]; ok && p.keyEnv != "" {
		names = append(names, p.keyEnv)
	}
	return names
}

// OllamaHost returns the configured base URL, OLLAMA_HOST, or localhost.
func (c *Config) OllamaHost(getenv func(string) string) string {
	if c.Model.BaseURL != "" {
		return c.Model.BaseURL
	}
	if h := getenv(EnvOllamaHost); h != "" {
		return h
	}
	return defaultOllamaHostName
}
