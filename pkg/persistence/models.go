package persistence

import (
	"time"

	"github.com/google/uuid"

	"storyqa/pkg/testcase"
)

// Run is one stored generation run with its cases in order.
type Run struct {
	ID         string              `json:"id"`
	IssueKey   string              `json:"issue_key,omitempty"`
	Path       string              `json:"path"`
	Model      string              `json:"model,omitempty"`
	ModelError string              `json:"model_error,omitempty"`
	CaseCount  int                 `json:"case_count"`
	CreatedAt  time.Time           `json:"created_at"`
	Cases      []testcase.TestCase `json:"cases,omitempty"`
}

// PublishedTest records a test issue created from a run.
type PublishedTest struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	StoryKey  string    `json:"story_key"`
	TestKey   string    `json:"test_key"`
	Title     string    `json:"title"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// NewRun builds a run record for a finished generation. modelErr may be nil.
func NewRun(issueKey, path, model string, modelErr error, cases []testcase.TestCase) *Run {
	run := &Run{
		ID:        NewRunID(),
		IssueKey:  issueKey,
		Path:      path,
		Model:     model,
		CaseCount: len(cases),
		CreatedAt: time.Now().UTC(),
		Cases:     cases,
	}
	if modelErr != nil {
		run.ModelError = modelErr.Error()
	}
	return run
}
