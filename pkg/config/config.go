// Package config loads storyqa settings from .storyqa/config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"storyqa/pkg/logx"
)

const (
	// ProjectConfigDir holds config, secrets and history under the project root.
	ProjectConfigDir = ".storyqa"
	// ConfigFileName is the YAML config file inside ProjectConfigDir.
	ConfigFileName = "config.yaml"
)

// Defaults.
const (
	DefaultAcceptanceCriteriaField = "customfield_10026"
	DefaultTestIssueType           = "Test"
	DefaultTestProject             = "XRM"
	DefaultLinkType                = "Tests"
	DefaultResolution              = "Pending"
	DefaultJiraTimeout             = 30 * time.Second

	DefaultModelName     = "llama-3.1-8b-instant"
	DefaultModelBaseURL  = "https://api.groq.com/openai/v1/"
	DefaultTemperature   = 0.9
	DefaultMaxTokens     = 8000
	DefaultModelTimeout  = 60 * time.Second
	DefaultCaseCount     = 10
	DefaultHistoryDBName = "history.db"
	DefaultServerAddr    = ":8080"
)

// Environment variable overrides.
const (
	EnvJiraBaseURL     = "STORYQA_JIRA_BASE_URL"
	EnvJiraEmail       = "STORYQA_JIRA_EMAIL"
	EnvJiraACField     = "STORYQA_JIRA_AC_FIELD"
	EnvModelProvider   = "STORYQA_MODEL_PROVIDER"
	EnvModelName       = "STORYQA_MODEL_NAME"
	EnvModelBaseURL    = "STORYQA_MODEL_BASE_URL"
	EnvStoragePath     = "STORYQA_STORAGE_PATH"
	EnvServerAddr      = "STORYQA_SERVER_ADDR"
	EnvMetricsEnabled  = "STORYQA_METRICS_ENABLED"
	EnvIncludeBaseline = "STORYQA_INCLUDE_BASELINE_CASES"
	// EnvSecretsPassword unlocks the secrets file without a prompt.
	EnvSecretsPassword = "STORYQA_PASSWORD"
)

// JiraConfig describes the tracker connection and publishing defaults.
type JiraConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Email                   string        `yaml:"email"`
	AcceptanceCriteriaField string        `yaml:"acceptance_criteria_field"`
	TestIssueType           string        `yaml:"test_issue_type"`
	DefaultTestProject      string        `yaml:"default_test_project"`
	LinkType                string        `yaml:"link_type"`
	Resolution              string        `yaml:"resolution"`
	Timeout                 time.Duration `yaml:"timeout"`
}

// ModelConfig selects the model provider. An empty Provider is inferred from Name.
type ModelConfig struct {
	Provider        string        `yaml:"provider"`
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	MaxPromptTokens int           `yaml:"max_prompt_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	Disabled        bool          `yaml:"disabled"`

	// Request limits for a shared client; zero leaves a limit off.
	MaxTokensPerMinute int `yaml:"max_tokens_per_minute"`
	MaxConcurrent      int `yaml:"max_concurrent"`
}

// GenerationConfig tunes test case generation.
type GenerationConfig struct {
	CaseCount            int  `yaml:"case_count"`
	IncludeBaselineCases bool `yaml:"include_baseline_cases"`
}

// StorageConfig locates the history database. A relative Path is resolved
// against the project's .storyqa directory.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full storyqa configuration.
type Config struct {
	Jira       JiraConfig       `yaml:"jira"`
	Model      ModelConfig      `yaml:"model"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`

	projectDir string
}

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("config")

// ErrJiraNotConfigured is returned when tracker credentials are incomplete.
var ErrJiraNotConfigured = errors.New("jira is not configured")

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Jira.AcceptanceCriteriaField == "" {
		cfg.Jira.AcceptanceCriteriaField = DefaultAcceptanceCriteriaField
	}
	if cfg.Jira.TestIssueType == "" {
		cfg.Jira.TestIssueType = DefaultTestIssueType
	}
	if cfg.Jira.DefaultTestProject == "" {
		cfg.Jira.DefaultTestProject = DefaultTestProject
	}
	if cfg.Jira.LinkType == "" {
		cfg.Jira.LinkType = DefaultLinkType
	}
	if cfg.Jira.Resolution == "" {
		cfg.Jira.Resolution = DefaultResolution
	}
	if cfg.Jira.Timeout <= 0 {
		cfg.Jira.Timeout = DefaultJiraTimeout
	}

	if cfg.Model.Provider == "" && cfg.Model.Name == "" {
		cfg.Model.Provider = ProviderGroq
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelFor(cfg.Model.Provider)
	}
	if cfg.Model.BaseURL == "" && cfg.Model.Provider == ProviderGroq {
		cfg.Model.BaseURL = DefaultModelBaseURL
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = DefaultTemperature
	}
	if cfg.Model.MaxTokens <= 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}
	if cfg.Model.Timeout <= 0 {
		cfg.Model.Timeout = DefaultModelTimeout
	}

	if cfg.Generation.CaseCount <= 0 {
		cfg.Generation.CaseCount = DefaultCaseCount
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultHistoryDBName
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
}

// Load reads <projectDir>/.storyqa/config.yaml when present, applies
// environment overrides and defaults, and validates the result.
func Load(projectDir string) (*Config, error) {
	cfg := &Config{}
	path := filepath.Join(projectDir, ProjectConfigDir, ConfigFileName)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("no config file at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Model.Provider == "" && cfg.Model.Name != "" {
		provider, err := GetModelProvider(cfg.Model.Name)
		if err != nil {
			return nil, err
		}
		cfg.Model.Provider = provider
	}
	applyDefaults(cfg)
	if cfg.Jira.BaseURL != "" {
		normalized, err := NormalizeBaseURL(cfg.Jira.BaseURL)
		if err != nil {
			return nil, err
		}
		cfg.Jira.BaseURL = normalized
	}
	cfg.projectDir = projectDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	textVars := []struct {
		env    string
		target *string
	}{
		{EnvJiraBaseURL, &cfg.Jira.BaseURL},
		{EnvJiraEmail, &cfg.Jira.Email},
		{EnvJiraACField, &cfg.Jira.AcceptanceCriteriaField},
		{EnvModelProvider, &cfg.Model.Provider},
		{EnvModelName, &cfg.Model.Name},
		{EnvModelBaseURL, &cfg.Model.BaseURL},
		{EnvStoragePath, &cfg.Storage.Path},
		{EnvServerAddr, &cfg.Server.Addr},
	}
	for _, s := range textVars {
		if v := os.Getenv(s.env); v != "" {
			*s.target = v
		}
	}

	boolVars := []struct {
		env    string
		target *bool
	}{
		{EnvMetricsEnabled, &cfg.Metrics.Enabled},
		{EnvIncludeBaseline, &cfg.Generation.IncludeBaselineCases},
	}
	for _, b := range boolVars {
		v := os.Getenv(b.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
		*b.target = parsed
	}
	return nil
}

// Validate checks structural settings. Jira credentials are checked
// separately by ValidateJira because offline commands do not need them.
func (c *Config) Validate() error {
	if _, ok := providerNames[c.Model.Provider]; !ok {
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2 (got %v)", c.Model.Temperature)
	}
	if c.Model.MaxPromptTokens < 0 || c.Model.MaxTokensPerMinute < 0 || c.Model.MaxConcurrent < 0 {
		return fmt.Errorf("model token and concurrency limits must not be negative")
	}
	if c.Generation.CaseCount > 100 {
		return fmt.Errorf("generation case_count must be at most 100 (got %d)", c.Generation.CaseCount)
	}
	return nil
}

// ValidateJira reports whether base URL, email and token are all present.
func (c *Config) ValidateJira(token string) error {
	var missing []string
	if strings.TrimSpace(c.Jira.BaseURL) == "" {
		missing = append(missing, "base URL")
	}
	if strings.TrimSpace(c.Jira.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(token) == "" {
		missing = append(missing, "API token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrJiraNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// NormalizeBaseURL trims the URL, defaults the scheme to https, repairs a
// single-slash scheme ("http:/host") and ends it with exactly one slash.
func NormalizeBaseURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", errors.New("base URL cannot be empty")
	}
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
	case strings.HasPrefix(u, "http:/"):
		u = strings.Replace(u, "http:/", "http://", 1)
	case strings.HasPrefix(u, "https:/"):
		u = strings.Replace(u, "https:/", "https://", 1)
	default:
		u = "https://" + u
	}
	return strings.TrimRight(u, "/") + "/", nil
}

// ProjectDir returns the directory the config was loaded from.
func (c *Config) ProjectDir() string {
	return c.projectDir
}

// ConfigDir returns <projectDir>/.storyqa.
func (c *Config) ConfigDir() string {
	return filepath.Join(c.projectDir, ProjectConfigDir)
}

// HistoryPath resolves the storage path against the config directory.
func (c *Config) HistoryPath() string {
	if c.Storage.Path == ":memory:" || filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(c.ConfigDir(), c.Storage.Path)
}

// Save writes cfg to <projectDir>/.storyqa/config.yaml.
func Save(cfg *Config, projectDir string) error {
	dir := filepath.Join(projectDir, ProjectConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644); err != nil { //nolint:gosec // config holds no secrets
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
