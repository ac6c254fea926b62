// Package export renders generated test cases as a skipped Go test file.
package export

import (
	"fmt"
	"go/format"
	"strings"

	"storyqa/pkg/templates"
	"storyqa/pkg/testcase"
	"storyqa/pkg/utils"
)

// DefaultPackage is used when Options.Package is empty.
const DefaultPackage = "acceptance_test"

// Options controls the generated file.
type Options struct {
	// Package is the Go package clause of the generated file.
	Package string
	// Source names where the cases came from, usually an issue key.
	Source string
}

type skeletonData struct {
	Package  string
	FuncName string
	Source   string
	Cases    []testcase.TestCase
}

// GoTest renders one test function with a t.Run per case. Steps and the
// expected result become comments and every subtest is skipped.
func GoTest(cases []testcase.TestCase, opts Options) ([]byte, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	source := strings.TrimSpace(opts.Source)
	if source == "" {
		source = "generated test cases"
	}

	src, err := templates.MustRenderer().Render(templates.GoTestSkeletonTemplate, skeletonData{
		Package:  pkg,
		FuncName: "Test" + utils.GoIdentifier(opts.Source, "Generated"),
		Source:   source,
		Cases:    cases,
	})
	if err != nil {
		return nil, err
	}

	formatted, err := format.Source([]byte(src + "\n"))
	if err != nil {
		return nil, fmt.Errorf("generated test file does not parse: %w", err)
	}
	return formatted, nil
}

// FileName suggests a file name for the cases of source, e.g.
// "XRM-42" becomes "xrm-42_test.go".
func FileName(source string) string {
	name := strings.ToLower(utils.SanitizeIdentifier(source))
	if name == "" {
		name = "generated"
	}
	return name + "_test.go"
}
