package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"storyqa/pkg/agent"
	"storyqa/pkg/config"
	"storyqa/pkg/generator"
	"storyqa/pkg/logx"
	"storyqa/pkg/metrics"
	"storyqa/pkg/persistence"
	"storyqa/pkg/prompt"
	"storyqa/pkg/publish"
	"storyqa/pkg/testcase"
	"storyqa/pkg/tracker"
	"storyqa/pkg/utils"
)

// app holds what every command loads: config, unlocked secrets and a
// metrics registry.
type app struct {
	cfg     *config.Config
	secrets *config.SecretStore
	metrics *metrics.Registry
	logger  *logx.Logger
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a := &app{
		cfg:     cfg,
		secrets: config.NewSecretStore(cfg.ConfigDir()),
		metrics: metrics.NewRegistry(),
		logger:  logx.NewLogger("cli"),
	}
	if err := a.unlockSecrets(); err != nil {
		return nil, err
	}
	return a, nil
}

// unlockSecrets decrypts the secrets file when there is one. Without a
// password in the environment or a terminal to ask on, lookups fall back to
// plain environment variables.
func (a *app) unlockSecrets() error {
	if !a.secrets.Exists() {
		return nil
	}
	password := os.Getenv(config.EnvSecretsPassword)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			a.logger.Warn("Secrets file %s is locked; set %s to unlock it", a.secrets.Path(), config.EnvSecretsPassword)
			return nil
		}
		p, err := readPassword("Secrets password: ")
		if err != nil {
			return err
		}
		password = p
	}
	if err := a.secrets.Unlock(password); err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}
	return nil
}

// generator builds the orchestrator. A model that cannot be reached leaves
// generation on the rules path.
func (a *app) generator() *generator.Orchestrator {
	builderOpts := []prompt.Option{prompt.WithCaseCount(a.cfg.Generation.CaseCount)}
	if a.cfg.Model.MaxPromptTokens > 0 {
		counter, err := utils.NewTokenCounter(a.cfg.Model.Name)
		if err != nil {
			a.logger.Warn("Prompt budget disabled: %v", err)
		} else {
			builderOpts = append(builderOpts, prompt.WithTokenBudget(counter, a.cfg.Model.MaxPromptTokens))
		}
	}

	opts := []generator.Option{
		generator.WithPromptBuilder(prompt.NewBuilder(builderOpts...)),
		generator.WithBaseline(a.cfg.Generation.IncludeBaselineCases),
		generator.WithObserver(a.metrics),
	}
	client, err := agent.NewClient(a.cfg, a.secrets, a.metrics.Recorder())
	if err != nil {
		a.logger.Warn("Generating with rules only: %v", err)
	} else {
		limits := agent.LimitsFor(a.cfg)
		opts = append(opts, generator.WithClient(client), generator.WithLimits(limits.MaxTokens, limits.Temperature))
	}
	return generator.New(opts...)
}

func (a *app) tracker() (*tracker.Client, error) {
	token, _ := a.secrets.Get(config.SecretJiraAPIToken)
	if err := a.cfg.ValidateJira(token); err != nil {
		return nil, err
	}
	return tracker.NewClient(tracker.Config{
		BaseURL:                 a.cfg.Jira.BaseURL,
		Email:                   a.cfg.Jira.Email,
		APIToken:                token,
		AcceptanceCriteriaField: a.cfg.Jira.AcceptanceCriteriaField,
		Timeout:                 a.cfg.Jira.Timeout,
	}), nil
}

func (a *app) publishOptions() publish.Options {
	return publish.Options{
		IssueType:  a.cfg.Jira.TestIssueType,
		LinkType:   a.cfg.Jira.LinkType,
		Resolution: a.cfg.Jira.Resolution,
	}
}

func (a *app) openStore() (*persistence.Store, error) {
	path := a.cfg.HistoryPath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return persistence.Open(path)
}

// saveRun stores a finished generation and returns it.
func (a *app) saveRun(ctx context.Context, issueKey string, out generator.Outcome) (*persistence.Run, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	run := persistence.NewRun(issueKey, string(out.Path), a.modelFor(out), out.ModelErr, out.Cases)
	if err := store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (a *app) modelFor(out generator.Outcome) string {
	if out.Path == generator.PathModel || out.ModelErr != nil {
		return a.cfg.Model.Name
	}
	return ""
}

// storyCases returns the newest stored cases for issue, generating (and
// storing) fresh ones when there are none or regenerate is set.
func (a *app) storyCases(ctx context.Context, issue *tracker.Issue, regenerate bool) ([]testcase.TestCase, string, error) {
	if !regenerate {
		store, err := a.openStore()
		if err != nil {
			return nil, "", err
		}
		run, err := store.LatestRun(ctx, issue.Key)
		_ = store.Close()
		switch {
		case err == nil && len(run.Cases) > 0:
			a.logger.Info("Using %d test cases from run %s", len(run.Cases), run.ID)
			return run.Cases, run.ID, nil
		case err != nil && !errors.Is(err, persistence.ErrRunNotFound):
			return nil, "", err
		}
	}

	out := a.generator().Generate(ctx, generator.StoryText(issue.Fields.Summary, issue.DescriptionText()), issue.AcceptanceCriteriaText())
	run, err := a.saveRun(ctx, issue.Key, out)
	if err != nil {
		return nil, "", err
	}
	return out.Cases, run.ID, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// readNewPassword asks twice and requires both answers to match.
func readNewPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		first, err := readPassword("New secrets password: ")
		if err != nil {
			return "", err
		}
		second, err := readPassword("Confirm password: ")
		if err != nil {
			return "", err
		}
		if first != "" && first == second {
			return first, nil
		}
		fmt.Fprintln(os.Stderr, "Passwords are empty or do not match.")
	}
	return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
}
