// Package generator decides between the model path and the rule path and
// returns the resulting test cases.
package generator

import (
	"context"
	"strings"
	"time"

	"storyqa/pkg/agent/llm"
	"storyqa/pkg/logx"
	"storyqa/pkg/prompt"
	"storyqa/pkg/response"
	"storyqa/pkg/testcase"
)

// Path names which generator produced an Outcome.
type Path string

const (
	PathModel Path = "model"
	PathRules Path = "rules"
)

// Observer is notified once per Generate call.
type Observer interface {
	ObserveGeneration(path string, cases int)
}

// Outcome is the result of one generation run. Cases is never nil.
// ModelErr explains why the model path was abandoned, if it was tried.
type Outcome struct {
	Cases    []testcase.TestCase
	Path     Path
	ModelErr error
}

// Orchestrator runs one generation at a time per call and holds no
// per-run state, so a single value may serve concurrent callers.
type Orchestrator struct {
	client      llm.LLMClient
	builder     *prompt.Builder
	parser      *response.Parser
	maxTokens   int
	temperature float32
	baseline    bool
	observer    Observer
	logger      *logx.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient enables the model path. A nil client leaves it disabled.
func WithClient(c llm.LLMClient) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithPromptBuilder replaces the default prompt builder.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// WithParser replaces the default response parser.
func WithParser(p *response.Parser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// WithLimits sets max tokens and temperature for model requests.
func WithLimits(maxTokens int, temperature float32) Option {
	return func(o *Orchestrator) {
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
		if temperature > 0 {
			o.temperature = temperature
		}
	}
}

// WithBaseline appends the generic positive and negative cases on the rule
// path when the story has text of its own.
func WithBaseline(enabled bool) Option {
	return func(o *Orchestrator) { o.baseline = enabled }
}

// WithObserver reports each run's path and case count.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New returns an orchestrator. Without WithClient it only uses rules.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		maxTokens:   llm.DefaultMaxTokens,
		temperature: llm.TemperatureDefault,
		logger:      logx.NewLogger("generator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.builder == nil {
		o.builder = prompt.NewBuilder()
	}
	if o.parser == nil {
		o.parser = response.NewParser()
	}
	return o
}

// Generate tries the model first when one is configured and falls back to
// the rule path when the model is unavailable, the prompt is empty, the call
// fails or is cancelled, or the reply yields no test cases.
func (o *Orchestrator) Generate(ctx context.Context, storyText, acceptanceCriteria string) Outcome {
	ctx = logx.WithComponent(ctx, "generator")
	out := o.generate(ctx, storyText, acceptanceCriteria)
	if o.observer != nil {
		o.observer.ObserveGeneration(string(out.Path), len(out.Cases))
	}
	return out
}

func (o *Orchestrator) generate(ctx context.Context, storyText, acceptanceCriteria string) Outcome {
	var modelErr error
	if o.client != nil {
		cases, err := o.fromModel(ctx, storyText, acceptanceCriteria)
		if len(cases) > 0 {
			o.logger.Info("model %s produced %d test cases", o.client.GetModelName(), len(cases))
			return Outcome{Cases: cases, Path: PathModel}
		}
		modelErr = err
		if err != nil {
			o.logger.Warn("model path failed, using rules: %v", err)
		} else {
			o.logger.Info("model path produced nothing, using rules")
		}
	}

	cases := testcase.Generate(acceptanceCriteria)
	if o.baseline && strings.TrimSpace(storyText) != "" {
		cases = append(cases, testcase.Baseline()...)
	}
	o.logger.Info("rules produced %d test cases", len(cases))
	return Outcome{Cases: cases, Path: PathRules, ModelErr: modelErr}
}

// fromModel makes exactly one model call. Errors, including cancellation,
// are returned for diagnostics and never end the run.
func (o *Orchestrator) fromModel(ctx context.Context, storyText, acceptanceCriteria string) ([]testcase.TestCase, error) {
	p := o.builder.Build(storyText, acceptanceCriteria)
	if p.Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(p.System),
		llm.NewUserMessage(p.User),
	})
	req.MaxTokens = o.maxTokens
	req.Temperature = o.temperature

	start := time.Now()
	resp, err := o.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	logx.Debug(ctx, "generator", "model replied in %s with %d chars", time.Since(start).Round(time.Millisecond), len(resp.Content))
	return o.parser.Parse(resp.Content), nil
}

// StoryText joins an issue's summary and description into the story text.
func StoryText(summary, description string) string {
	summary = strings.TrimSpace(summary)
	description = strings.TrimSpace(description)
	switch {
	case summary == "":
		return description
	case description == "":
		return summary
	default:
		return summary + "\n\n" + description
	}
}
