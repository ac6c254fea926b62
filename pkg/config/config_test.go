package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ProjectConfigDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigDir, ConfigFileName), []byte(body), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, cfg.Model.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model.Name)
	assert.Equal(t, "https://api.groq.com/openai/v1/", cfg.Model.BaseURL)
	assert.InDelta(t, 0.9, cfg.Model.Temperature, 0.0001)
	assert.Equal(t, 8000, cfg.Model.MaxTokens)
	assert.Equal(t, "customfield_10026", cfg.Jira.AcceptanceCriteriaField)
	assert.Equal(t, "XRM", cfg.Jira.DefaultTestProject)
	assert.Equal(t, "Tests", cfg.Jira.LinkType)
	assert.Equal(t, "Pending", cfg.Jira.Resolution)
	assert.Equal(t, 30*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, 10, cfg.Generation.CaseCount)
	assert.False(t, cfg.Generation.IncludeBaselineCases)
	assert.Equal(t, filepath.Join(dir, ".storyqa", "history.db"), cfg.HistoryPath())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
jira:
  base_url: example.atlassian.net
  email: qa@example.com
  timeout: 10s
model:
  name: claude-sonnet-4-5
  max_prompt_tokens: 3000
generation:
  case_count: 5
`)
	t.Setenv(EnvJiraACField, "customfield_20000")
	t.Setenv(EnvIncludeBaseline, "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net/", cfg.Jira.BaseURL)
	assert.Equal(t, "qa@example.com", cfg.Jira.Email)
	assert.Equal(t, 10*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, "customfield_20000", cfg.Jira.AcceptanceCriteriaField)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Empty(t, cfg.Model.BaseURL)
	assert.Equal(t, 3000, cfg.Model.MaxPromptTokens)
	assert.Equal(t, 5, cfg.Generation.CaseCount)
	assert.True(t, cfg.Generation.IncludeBaselineCases)
}

func TestLoadProviderWithoutModel(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "model:\n  provider: ollama\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", cfg.Model.Name)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaHost(func(string) string { return "" }))
	assert.Equal(t, "http://gpu:11434", cfg.OllamaHost(func(string) string { return "http://gpu:11434" }))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"bad yaml", "jira: [", nil},
		{"unknown model", "model:\n  name: mystery-model\n", nil},
		{"unknown provider", "model:\n  provider: acme\n  name: x\n", nil},
		{"hot temperature", "model:\n  temperature: 3\n", nil},
		{"bad bool env", "", map[string]string{EnvMetricsEnabled: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://acme.atlassian.net", "https://acme.atlassian.net/"},
		{"  https://acme.atlassian.net///  ", "https://acme.atlassian.net/"},
		{"http://localhost:8080/jira/", "http://localhost:8080/jira/"},
		{"http:/localhost:8080", "http://localhost:8080/"},
		{"https:/acme.atlassian.net", "https://acme.atlassian.net/"},
		{"acme.atlassian.net", "https://acme.atlassian.net/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeBaseURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeBaseURL("   ")
	assert.Error(t, err)
}

func TestValidateJira(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateJira("")
	require.ErrorIs(t, err, ErrJiraNotConfigured)
	assert.Contains(t, err.Error(), "base URL, email, API token")

	cfg.Jira.BaseURL = "https://acme.atlassian.net/"
	cfg.Jira.Email = "qa@acme.test"
	assert.NoError(t, cfg.ValidateJira("token"))
}

func TestGetModelProvider(t *testing.T) {
	tests := []struct {
		model, want string
	}{
		{"llama-3.1-8b-instant", ProviderGroq},
		{"llama3.1:8b", ProviderOllama},
		{"gpt-4o", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"claude-3-opus", ProviderAnthropic},
		{"gemini-2.5-pro", ProviderGoogle},
	}
	for _, tt := range tests {
		got, err := GetModelProvider(tt.model)
		require.NoError(t, err, tt.model)
		assert.Equal(t, tt.want, got, tt.model)
	}

	_, err := GetModelProvider("unheard-of")
	assert.Error(t, err)
}

func TestAPIKeyNames(t *testing.T) {
	assert.Equal(t, []string{"MODEL_API_KEY", "GROQ_API_KEY"}, APIKeyNames(ProviderGroq))
	assert.Equal(t, []string{"MODEL_API_KEY"}, APIKeyNames(ProviderOllama))
	assert.False(t, RequiresAPIKey(ProviderOllama))
	assert.True(t, RequiresAPIKey(ProviderAnthropic))
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Jira.Email = "qa@acme.test"
	require.NoError(t, Save(cfg, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "qa@acme.test", loaded.Jira.Email)
}
