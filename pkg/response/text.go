package response

import (
	"fmt"
	"regexp"
	"strings"

	"storyqa/pkg/testcase"
	"storyqa/pkg/textscan"
)

// DefaultExpected fills in a prose test case with no recognisable outcome.
const DefaultExpected = "Expected behavior is achieved"

// DefaultTextSteps fills in a prose test case with no recognisable steps.
func DefaultTextSteps() []string {
	return []string{"Navigate to the feature", "Perform the required action", "Verify the expected outcome"}
}

var (
	caseMarker   = regexp.MustCompile(`TC-\d+[:.]`)
	numberedCase = regexp.MustCompile(`(?m)^\d+[.)]`)

	// Longest alternative first so "Expected Result:" is not read as "Expected".
	expectedLabel = regexp.MustCompile(`(?i)(?:expected result|expected outcome|expected)[:.]?\s*([^.\n]+)`)
	expectedModal = regexp.MustCompile(`(?i)(?:should|must|will)\s+([^.\n]+)`)
)

// MarkerStrategy splits prose on "TC-n:" markers.
type MarkerStrategy struct{}

func (MarkerStrategy) Name() string { return "marker" }

func (MarkerStrategy) Parse(raw string) []testcase.TestCase {
	return casesFromSegments(raw, caseMarker.FindAllStringIndex(raw, -1))
}

// NumberedStrategy splits prose on line-leading "1." or "1)" markers. It
// stands aside when the reply uses "TC-n:" markers.
type NumberedStrategy struct{}

func (NumberedStrategy) Name() string { return "numbered" }

func (NumberedStrategy) Parse(raw string) []testcase.TestCase {
	if caseMarker.MatchString(raw) {
		return nil
	}
	return casesFromSegments(raw, numberedCase.FindAllStringIndex(raw, -1))
}

// casesFromSegments builds one test case from the text after each marker,
// up to the next marker.
func casesFromSegments(raw string, markers [][]int) []testcase.TestCase {
	var cases []testcase.TestCase
	for i, m := range markers {
		end := len(raw)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		tc, ok := caseFromSegment(strings.TrimSpace(raw[m[1]:end]), len(cases)+1)
		if ok {
			cases = append(cases, tc)
		}
	}
	return cases
}

func caseFromSegment(content string, n int) (testcase.TestCase, bool) {
	lines := nonEmptyLines(content)
	if len(lines) == 0 {
		return testcase.TestCase{}, false
	}
	description := lines[0]
	if len(lines) > 1 {
		description = lines[1]
	}
	return testcase.TestCase{
		Title:          fmt.Sprintf("TC-%d: %s", n, lines[0]),
		Description:    description,
		Steps:          stepsFromText(content),
		ExpectedResult: expectedFromText(content),
		Priority:       testcase.PriorityMedium,
	}, true
}

func stepsFromText(content string) []string {
	if steps := textscan.Clauses(content, textscan.NumberedStepLead, textscan.NumberedStepStop); len(steps) > 0 {
		return steps
	}
	if steps := textscan.Clauses(content, textscan.GherkinLead, textscan.GherkinStop); len(steps) > 0 {
		return steps
	}
	return DefaultTextSteps()
}

func expectedFromText(content string) string {
	for _, re := range []*regexp.Regexp{expectedLabel, expectedModal} {
		if s, ok := textscan.FirstCapture(re, content); ok && s != "" {
			return s
		}
	}
	return DefaultExpected
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
