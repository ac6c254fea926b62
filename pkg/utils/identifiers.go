package utils

import (
	"strings"
	"unicode"
)

// SanitizeIdentifier makes an issue key or title safe for file names:
// separators and whitespace become dashes.
func SanitizeIdentifier(id string) string {
	replacer := strings.NewReplacer(":", "-", " ", "-", "/", "-", "\\", "-")
	return replacer.Replace(strings.TrimSpace(id))
}

// GoIdentifier turns arbitrary text into an exported Go identifier,
// e.g. "PROJ-12 login" becomes "Proj12Login". Text without letters or digits
// yields fallback.
func GoIdentifier(s, fallback string) string {
	var sb strings.Builder
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	out := sb.String()
	if out == "" {
		return fallback
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return fallback + out
	}
	return out
}
