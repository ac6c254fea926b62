package export

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/testcase"
)

func TestGoTest(t *testing.T) {
	cases := testcase.Generate("- User must log in\n- User should see dashboard")

	out, err := GoTest(cases, Options{Source: "XRM-42"})
	require.NoError(t, err)
	src := string(out)

	assert.True(t, strings.HasPrefix(src, "package acceptance_test\n"))
	assert.Contains(t, src, "func TestXrm42(t *testing.T) {")
	assert.Contains(t, src, `t.Run("TC-1: Verify User must log in", func(t *testing.T) {`)
	assert.Contains(t, src, "// Priority: High")
	assert.Contains(t, src, "// Step 1: Navigate to the relevant screen")
	assert.Equal(t, 2, strings.Count(src, `t.Skip("not implemented")`))

	_, err = parser.ParseFile(token.NewFileSet(), "x_test.go", out, parser.AllErrors)
	assert.NoError(t, err)
}

func TestGoTestQuotesAwkwardText(t *testing.T) {
	cases := []testcase.TestCase{{
		Title:          `Handles "quotes" and \ slashes`,
		Description:    "multi\nline\tdescription",
		Steps:          []string{"step\nwith newline"},
		ExpectedResult: "works",
		Priority:       testcase.PriorityLow,
	}}

	out, err := GoTest(cases, Options{Package: "login"})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "package login")
	assert.Contains(t, src, "func TestGenerated(t *testing.T) {")
	assert.Contains(t, src, "// multi line description")
	assert.Contains(t, src, "// Step 1: step with newline")
	_, err = parser.ParseFile(token.NewFileSet(), "x_test.go", out, 0)
	assert.NoError(t, err)
}

func TestGoTestNoCases(t *testing.T) {
	out, err := GoTest(nil, Options{Source: "XRM-1"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "func TestXrm1(t *testing.T) {")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "xrm-42_test.go", FileName("XRM-42"))
	assert.Equal(t, "my-story_test.go", FileName("My Story"))
	assert.Equal(t, "generated_test.go", FileName("  "))
}
