package response

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"storyqa/pkg/logx"
	"storyqa/pkg/testcase"
)

const (
	untitledCase = "Untitled Test Case"
	jsonFence    = "```json"
	plainFence   = "```"
)

// DefaultJSONSteps fills in a JSON test case that lists no steps.
func DefaultJSONSteps() []string {
	return []string{"Step 1: Navigate to feature", "Step 2: Perform action", "Step 3: Verify result"}
}

// JSONStrategy reads a JSON array of test case objects, tolerating code
// fences and prose around the array.
type JSONStrategy struct {
	logger *logx.Logger
}

func (JSONStrategy) Name() string { return "json" }

func (s JSONStrategy) Parse(raw string) []testcase.TestCase {
	text, ok := extractArray(raw)
	if !ok || !gjson.Valid(text) {
		return nil
	}
	arr := gjson.Parse(text)
	if !arr.IsArray() {
		return nil
	}

	var cases []testcase.TestCase
	index := 0
	arr.ForEach(func(_, v gjson.Result) bool {
		index++
		tc, err := caseFromJSON(v)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping test case %d: %v", index, err)
			}
			return true
		}
		cases = append(cases, tc)
		return true
	})
	return cases
}

// extractArray strips code fences and slices from the first '[' to the last ']'.
func extractArray(raw string) (string, bool) {
	text := strings.TrimSpace(raw)

	switch {
	case strings.Contains(text, jsonFence):
		text = unfence(text, jsonFence)
	case strings.Contains(text, plainFence):
		text = unfence(text, plainFence)
	}

	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// unfence keeps the text between the opening marker and the last fence.
func unfence(text, marker string) string {
	start := strings.Index(text, marker) + len(marker)
	end := strings.LastIndex(text, plainFence)
	if end <= start {
		return text
	}
	return strings.TrimSpace(text[start:end])
}

func caseFromJSON(v gjson.Result) (testcase.TestCase, error) {
	if !v.IsObject() {
		return testcase.TestCase{}, fmt.Errorf("element is %s, not an object", v.Type)
	}

	title, err := stringField(v, untitledCase, "title")
	if err != nil {
		return testcase.TestCase{}, err
	}
	if title == "" {
		title = untitledCase
	}
	description, err := stringField(v, "", "description")
	if err != nil {
		return testcase.TestCase{}, err
	}
	expected, err := stringField(v, "", "expectedResult", "expected_result", "expected")
	if err != nil {
		return testcase.TestCase{}, err
	}
	priority, err := stringField(v, string(testcase.PriorityMedium), "priority")
	if err != nil {
		return testcase.TestCase{}, err
	}

	steps := stepsField(v.Get("steps"))
	if len(steps) == 0 {
		steps = DefaultJSONSteps()
	}

	return testcase.TestCase{
		Title:          title,
		Description:    description,
		Steps:          steps,
		ExpectedResult: expected,
		Priority:       testcase.ParsePriority(priority),
	}, nil
}

// stringField returns the first present key as trimmed text. Missing and
// null values yield def; objects and arrays are an error.
func stringField(v gjson.Result, def string, keys ...string) (string, error) {
	for _, key := range keys {
		r := v.Get(key)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if r.IsObject() || r.IsArray() {
			return "", fmt.Errorf("field %q is not a scalar", key)
		}
		return strings.TrimSpace(r.String()), nil
	}
	return def, nil
}

func stepsField(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var steps []string
	for _, item := range r.Array() {
		if item.Type == gjson.Null || item.IsObject() || item.IsArray() {
			continue
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}
