// Package testcase defines the canonical generated test case and the
// rule-based generator that derives test cases from parsed criteria.
package testcase

import (
	"fmt"
	"strings"

	"storyqa/pkg/criteria"
)

// Priority ranks a test case.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority maps free-form priority text onto a Priority. Matching is
// case-insensitive; anything unrecognised is Medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// TestCase is one generated test case.
type TestCase struct {
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description" yaml:"description"`
	Steps          []string `json:"steps" yaml:"steps"`
	ExpectedResult string   `json:"expectedResult" yaml:"expected_result"`
	Priority       Priority `json:"priority" yaml:"priority"`
}

// Validate reports whether the test case can be submitted to a tracker.
func (tc *TestCase) Validate() error {
	if strings.TrimSpace(tc.Title) == "" {
		return fmt.Errorf("test case has no title")
	}
	if len(tc.Steps) == 0 {
		return fmt.Errorf("test case %q has no steps", tc.Title)
	}
	for i, s := range tc.Steps {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("test case %q has an empty step %d", tc.Title, i+1)
		}
	}
	return nil
}

// ClassifyPriority applies the keyword heuristic to a criterion description:
// critical, must or required is High; should or important is Medium; anything
// else is Low. Matches are plain substrings.
func ClassifyPriority(description string) Priority {
	text := strings.ToLower(description)
	switch {
	case strings.Contains(text, "critical"), strings.Contains(text, "must"), strings.Contains(text, "required"):
		return PriorityHigh
	case strings.Contains(text, "should"), strings.Contains(text, "important"):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// FromCriteria maps each criterion to a test case, preserving order.
func FromCriteria(cs []criteria.Criterion) []TestCase {
	out := make([]TestCase, 0, len(cs))
	for i, c := range cs {
		out = append(out, TestCase{
			Title:          fmt.Sprintf("TC-%d: Verify %s", i+1, c.Summary),
			Description:    "Test case to verify: " + c.Description,
			Steps:          append([]string(nil), c.Steps...),
			ExpectedResult: c.ExpectedResult,
			Priority:       ClassifyPriority(c.Description),
		})
	}
	return out
}

// Generate runs the rule-based path over raw acceptance criteria text.
func Generate(acceptanceCriteria string) []TestCase {
	return FromCriteria(criteria.Parse(acceptanceCriteria))
}

// Baseline returns the generic positive and negative cases appended when a
// story description exists and baseline cases are enabled.
func Baseline() []TestCase {
	return []TestCase{
		{
			Title:       "TC-Positive: Verify basic functionality",
			Description: "Verify that the feature works correctly with valid inputs",
			Steps: []string{
				"Open the application",
				"Navigate to the feature",
				"Perform valid actions",
				"Verify successful completion",
			},
			ExpectedResult: "Feature works as expected",
			Priority:       PriorityHigh,
		},
		{
			Title:       "TC-Negative: Verify error handling",
			Description: "Verify that the feature handles invalid inputs gracefully",
			Steps: []string{
				"Open the application",
				"Navigate to the feature",
				"Perform invalid actions",
				"Verify error message is displayed",
			},
			ExpectedResult: "Appropriate error message is shown",
			Priority:       PriorityMedium,
		},
	}
}

// FormatBody renders the test case as the plain-text body of a tracker issue.
// parentKey, when set, adds a reference to the originating story.
func FormatBody(tc *TestCase, parentKey string) string {
	var sb strings.Builder
	sb.WriteString(tc.Description)
	sb.WriteString("\n\nSteps:\n")
	for i, step := range tc.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
	}
	sb.WriteString("\nExpected Result:\n")
	sb.WriteString(tc.ExpectedResult)
	sb.WriteString("\n\nPriority: ")
	sb.WriteString(string(tc.Priority))
	if parentKey != "" {
		sb.WriteString("\n\nRelated Story: ")
		sb.WriteString(parentKey)
	}
	return sb.String()
}
