// Package prompt composes the system and user messages sent to the model.
package prompt

import (
	"strings"

	"storyqa/pkg/templates"
	"storyqa/pkg/utils"
)

// DefaultCaseCount is how many test cases the model is asked for.
const DefaultCaseCount = 10

// Prompt is the message pair for one model call. An empty User means there
// is nothing to send.
type Prompt struct {
	System string
	User   string
}

// Empty reports whether the prompt has no user content.
func (p Prompt) Empty() bool {
	return p.User == ""
}

// Builder renders prompts from the embedded templates.
type Builder struct {
	renderer  *templates.Renderer
	counter   *utils.TokenCounter
	count     int
	maxTokens int
}

// Option configures a Builder.
type Option func(*Builder)

// WithCaseCount overrides the number of requested test cases.
func WithCaseCount(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.count = n
		}
	}
}

// WithTokenBudget truncates the description block to about maxTokens tokens.
func WithTokenBudget(counter *utils.TokenCounter, maxTokens int) Option {
	return func(b *Builder) {
		b.counter = counter
		b.maxTokens = maxTokens
	}
}

// NewBuilder returns a builder over the embedded templates.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		renderer: templates.MustRenderer(),
		count:    DefaultCaseCount,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Description joins story text and acceptance criteria into the block the
// model sees. Either part may be blank.
func Description(storyText, acceptanceCriteria string) string {
	var sb strings.Builder
	if strings.TrimSpace(storyText) != "" {
		sb.WriteString(storyText)
	}
	if strings.TrimSpace(acceptanceCriteria) != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Acceptance Criteria:\n")
		sb.WriteString(acceptanceCriteria)
	}
	return sb.String()
}

// Build renders the prompt. A blank description block yields an empty user
// message and no model call should be made.
func (b *Builder) Build(storyText, acceptanceCriteria string) Prompt {
	description := Description(storyText, acceptanceCriteria)
	if strings.TrimSpace(description) == "" {
		return Prompt{System: b.system()}
	}
	if b.counter != nil {
		description = b.counter.TruncateToTokenLimit(description, b.maxTokens)
	}

	user, err := b.renderer.Render(templates.TestCaseUserTemplate, templates.PromptData{
		Description: description,
		Count:       b.count,
	})
	if err != nil {
		return Prompt{System: b.system()}
	}
	return Prompt{System: b.system(), User: user}
}

func (b *Builder) system() string {
	s, err := b.renderer.Render(templates.TestCaseSystemTemplate, nil)
	if err != nil {
		return ""
	}
	return s
}
