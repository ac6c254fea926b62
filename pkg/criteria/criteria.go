// Package criteria splits free-form acceptance criteria into discrete,
// independently testable criteria.
package criteria

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"storyqa/pkg/textscan"
)

// SummaryLength is the number of characters kept in a criterion summary.
const SummaryLength = 50

// DefaultExpectedResult is used when no expectation keyword is found.
const DefaultExpectedResult = "The feature works as expected"

// DefaultSteps returns the steps used when no Gherkin clause is found.
func DefaultSteps() []string {
	return []string{
		"Navigate to the relevant screen",
		"Perform the required action",
		"Verify the expected outcome",
	}
}

// Criterion is one requirement extracted from acceptance criteria text.
type Criterion struct {
	Summary        string   `json:"summary"`
	Description    string   `json:"description"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expectedResult"`
}

const bulletMarkers = "-*•◦▪‣●"

var (
	ordinalLine   = regexp.MustCompile(`^\d+[.)]\s*(.*)$`)
	labelLine     = regexp.MustCompile(`(?i)^(?:ac:?|given|when|then|and|but)\s+(.*)$`)
	modalKeywords = []string{"should", "must", "verify", "ensure"}

	paragraphBreak  = regexp.MustCompile(`\n[ \t\r]*\n`)
	sentenceBreak   = regexp.MustCompile(`[.!?]`)
	expectedPattern = regexp.MustCompile(`(?i)(?:should|must|expected|verify|ensure)\s+([^.\n]+)`)
)

// minFallbackLength is the length a line or sentence must exceed to count
// without explicit structure.
const minFallbackLength = 10

// Parse extracts criteria from raw acceptance criteria text in source order.
// Blank input yields an empty slice.
func Parse(raw string) []Criterion {
	if strings.TrimSpace(raw) == "" {
		return []Criterion{}
	}

	var contents []string
	for _, line := range strings.Split(raw, "\n") {
		if content, ok := structuredContent(strings.TrimSpace(line)); ok {
			contents = append(contents, content)
		}
	}
	if len(contents) == 0 {
		contents = unstructuredContents(raw)
	}

	out := make([]Criterion, 0, len(contents))
	for _, c := range contents {
		out = append(out, New(c))
	}
	return out
}

// structuredContent applies the per-line rules; the first matching rule wins.
func structuredContent(line string) (string, bool) {
	if line == "" {
		return "", false
	}

	if r, size := utf8.DecodeRuneInString(line); strings.ContainsRune(bulletMarkers, r) {
		return nonEmpty(strings.TrimSpace(line[size:]))
	}
	if m := ordinalLine.FindStringSubmatch(line); m != nil {
		return nonEmpty(strings.TrimSpace(m[1]))
	}
	if m := labelLine.FindStringSubmatch(line); m != nil {
		return nonEmpty(strings.TrimSpace(m[1]))
	}
	if utf8.RuneCountInString(line) > minFallbackLength && containsAny(strings.ToLower(line), modalKeywords) {
		return line, true
	}
	return "", false
}

// unstructuredContents splits on blank lines, then on sentence terminators.
func unstructuredContents(raw string) []string {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) > 1 {
		return paragraphs
	}

	var sentences []string
	for _, s := range sentenceBreak.Split(raw, -1) {
		if s = strings.TrimSpace(s); utf8.RuneCountInString(s) > minFallbackLength {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// New derives summary, steps and expected result from one criterion's text.
func New(content string) Criterion {
	steps := textscan.Clauses(content, textscan.GherkinLead, textscan.GherkinStop)
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	expected, ok := textscan.FirstCapture(expectedPattern, content)
	if !ok {
		expected = DefaultExpectedResult
	}
	return Criterion{
		Summary:        textscan.Truncate(content, SummaryLength),
		Description:    content,
		Steps:          steps,
		ExpectedResult: expected,
	}
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
