// Package textscan holds the small text-scanning helpers shared by the
// criteria parser and the model response parser.
package textscan

import (
	"regexp"
	"strings"
)

// Keyword-led clause markers used for Gherkin style steps.
var (
	GherkinLead = regexp.MustCompile(`(?i)(?:given|when|then|and|but)\s+`)
	GherkinStop = regexp.MustCompile(`(?i)given|when|then|and|but`)
)

// Numbered step markers ("Step 1:", "2.", "3:").
var (
	NumberedStepLead = regexp.MustCompile(`(?i)(?:step\s+\d+[:.]|\d+[:.])\s*`)
	NumberedStepStop = regexp.MustCompile(`(?i)step\s+\d+[:.]|\d+[:.]`)
)

// Clauses returns the trimmed text following each match of lead. A clause
// runs until the next position where stop matches, the end of its line, or
// the end of text, whichever comes first, and is at least one character
// long. Matching is positional, not word-bounded: "understand" contains a
// stop at "and". Empty clauses are dropped.
func Clauses(text string, lead, stop *regexp.Regexp) []string {
	var clauses []string
	pos := 0
	for pos < len(text) {
		loc := lead.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		body := pos + loc[1]
		if body >= len(text) || text[body] == '\n' {
			pos = start + 1
			continue
		}

		end := len(text)
		if nl := strings.IndexByte(text[body:], '\n'); nl >= 0 {
			end = body + nl
		}
		if body+1 < end {
			if s := stop.FindStringIndex(text[body+1 : end]); s != nil {
				end = body + 1 + s[0]
			}
		}

		if clause := strings.TrimSpace(text[body:end]); clause != "" {
			clauses = append(clauses, clause)
		}
		pos = end
	}
	return clauses
}

// FirstCapture returns the trimmed first submatch of re in text.
func FirstCapture(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Truncate keeps the first n runes of s, appending "..." when anything was cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
