// Package templates renders the embedded prompt and export templates.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md *.tpl
var templateFS embed.FS

// Name identifies an embedded template.
type Name string

const (
	// TestCaseSystemTemplate frames the model as a QA engineer.
	TestCaseSystemTemplate Name = "testcase_system.tpl.md"
	// TestCaseUserTemplate asks for tailored test cases as a JSON array.
	TestCaseUserTemplate Name = "testcase_user.tpl.md"
	// GoTestSkeletonTemplate renders generated cases as a Go test file.
	GoTestSkeletonTemplate Name = "go_test_skeleton.tpl"
)

// PromptData feeds the test case prompt templates.
type PromptData struct {
	Description string
	Count       int
}

// Renderer holds the parsed templates.
type Renderer struct {
	templates map[Name]*template.Template
}

var funcs = template.FuncMap{ //nolint:gochecknoglobals
	"inc": func(i int) int { return i + 1 },
	"oneline": func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	},
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Name]*template.Template)}

	for _, name := range []Name{TestCaseSystemTemplate, TestCaseUserTemplate, GoTestSkeletonTemplate} {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Funcs(funcs).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// MustRenderer is NewRenderer for package-level initialisation. The
// templates are embedded, so a failure is a build defect.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render executes the named template. Surrounding whitespace is trimmed.
func (r *Renderer) Render(name Name, data any) (string, error) {
	tmpl, exists := r.templates[name]
	if !exists {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
