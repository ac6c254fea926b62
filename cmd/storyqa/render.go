package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"storyqa/pkg/generator"
	"storyqa/pkg/metrics"
	"storyqa/pkg/testcase"
)

//nolint:gochecknoglobals // terminal styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	priorityStyles = map[testcase.Priority]lipgloss.Style{
		testcase.PriorityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		testcase.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		testcase.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

func renderPriority(p testcase.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(string(p))
}

// printOutcome writes a header naming the generation path, then the cases.
func printOutcome(w io.Writer, out generator.Outcome) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Generated %d test cases (%s)", len(out.Cases), out.Path)))
	if out.ModelErr != nil {
		fmt.Fprintln(w, dimStyle.Render("model skipped: "+out.ModelErr.Error()))
	}
	fmt.Fprintln(w)
	printCases(w, out.Cases)
}

func printCases(w io.Writer, cases []testcase.TestCase) {
	for i := range cases {
		tc := &cases[i]
		fmt.Fprintf(w, "%s  [%s]\n", titleStyle.Render(tc.Title), renderPriority(tc.Priority))
		if tc.Description != "" {
			fmt.Fprintf(w, "  %s\n", tc.Description)
		}
		for n, step := range tc.Steps {
			fmt.Fprintf(w, "  %d. %s\n", n+1, step)
		}
		if tc.ExpectedResult != "" {
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("Expected:"), tc.ExpectedResult)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMetrics dumps the run's metrics to path, or to stdout for "-".
func writeMetrics(reg *metrics.Registry, path string, stdout io.Writer) error {
	if path == "" {
		return nil
	}
	if path == "-" {
		return reg.WriteText(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := reg.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
