// Package publish creates generated test cases as Jira test issues linked to
// their story.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyqa/pkg/adf"
	"storyqa/pkg/logx"
	"storyqa/pkg/testcase"
	"storyqa/pkg/tracker"
)

// StoryIssueType is the only issue type that accepts generated tests.
const StoryIssueType = "Story"

var (
	// ErrNotStory is returned when the parent issue is not a Story.
	ErrNotStory = errors.New("test cases can only be added to stories")
	// ErrNoCases is returned when there is nothing to publish.
	ErrNoCases = errors.New("no test cases to publish")
)

// Tracker is the subset of the Jira client the publisher uses.
type Tracker interface {
	CreateIssue(ctx context.Context, in *tracker.NewIssue) (*tracker.CreatedIssue, error)
	LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error
	UpdateField(ctx context.Context, key, field string, value any) error
}

// Observer is told about every attempted creation.
type Observer interface {
	ObservePublished(project string, ok bool)
}

// Options are the Jira-side names used while publishing. Empty LinkType or
// Resolution skips that step.
type Options struct {
	IssueType  string
	LinkType   string
	Resolution string
}

// Created is one test issue that now exists in Jira.
type Created struct {
	Title string `json:"title"`
	Key   string `json:"key"`
	ID    string `json:"id"`
	Self  string `json:"self"`
}

// Failure is one test case that could not be created.
type Failure struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// Result lists what was created and what failed, in input order.
type Result struct {
	Project  string    `json:"project"`
	Created  []Created `json:"created"`
	Failures []Failure `json:"failures,omitempty"`
}

// Publisher creates test issues for a story.
type Publisher struct {
	tracker  Tracker
	opts     Options
	observer Observer
	logger   *logx.Logger
}

// New returns a publisher. observer may be nil.
func New(t Tracker, opts Options, observer Observer) *Publisher {
	if opts.IssueType == "" {
		opts.IssueType = "Test"
	}
	return &Publisher{
		tracker:  t,
		opts:     opts,
		observer: observer,
		logger:   logx.NewLogger("publish"),
	}
}

// Publish creates one test issue per case in the resolved target project.
// Link and resolution failures are logged and do not fail the case; a
// failed creation is recorded and the remaining cases still run. The error
// is non-nil only when nothing could be attempted.
func (p *Publisher) Publish(ctx context.Context, story *tracker.Issue, cases []testcase.TestCase, target string, projects []tracker.Project) (*Result, error) {
	if story.Fields.IssueType.Name != StoryIssueType {
		return nil, fmt.Errorf("%w: %s is a %q", ErrNotStory, story.Key, story.Fields.IssueType.Name)
	}
	if len(cases) == 0 {
		return nil, ErrNoCases
	}

	ref, fallbackID := ResolveProject(target, story, projects)
	result := &Result{Project: ref.Key, Created: []Created{}}
	if result.Project == "" {
		result.Project = ref.ID
	}

	for i := range cases {
		tc := &cases[i]
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, Failure{Title: tc.Title, Error: err.Error()})
			continue
		}
		created, err := p.publishOne(ctx, story.Key, tc, ref, fallbackID)
		if p.observer != nil {
			p.observer.ObservePublished(result.Project, err == nil)
		}
		if err != nil {
			p.logger.Error("failed to create %q: %v", tc.Title, err)
			result.Failures = append(result.Failures, Failure{Title: tc.Title, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *created)
	}

	p.logger.Info("published %d of %d test cases for %s", len(result.Created), len(cases), story.Key)
	return result, nil
}

func (p *Publisher) publishOne(ctx context.Context, storyKey string, tc *testcase.TestCase, ref tracker.ProjectRef, fallbackID string) (*Created, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	in := &tracker.NewIssue{
		Project:   ref,
		Summary:   tc.Title,
		Body:      adf.FromText(testcase.FormatBody(tc, storyKey)),
		IssueType: p.opts.IssueType,
	}
	issue, err := p.tracker.CreateIssue(ctx, in)
	if err != nil && fallbackID != "" && isProjectError(err) {
		p.logger.Warn("project %s rejected, retrying with project id %s", ref.Key, fallbackID)
		in.Project = tracker.ProjectRef{ID: fallbackID}
		issue, err = p.tracker.CreateIssue(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	if p.opts.LinkType != "" {
		if err := p.tracker.LinkIssues(ctx, p.opts.LinkType, issue.Key, storyKey); err != nil {
			p.logger.Warn("created %s but could not link it to %s: %v", issue.Key, storyKey, err)
		}
	}
	if p.opts.Resolution != "" {
		if err := p.tracker.UpdateField(ctx, issue.Key, "resolution", map[string]string{"name": p.opts.Resolution}); err != nil {
			p.logger.Warn("created %s but could not set resolution %q: %v", issue.Key, p.opts.Resolution, err)
		}
	}

	return &Created{Title: tc.Title, Key: issue.Key, ID: issue.ID, Self: issue.Self}, nil
}

// isProjectError reports a 400 whose messages blame the project field.
func isProjectError(err error) bool {
	var apiErr *tracker.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	for _, m := range apiErr.Messages {
		if strings.Contains(strings.ToLower(m), "project") {
			return true
		}
	}
	return false
}
