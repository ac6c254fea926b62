package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyqa/pkg/generator"
	"storyqa/pkg/testcase"
)

type generateOptions struct {
	json       bool
	metricsOut string
	noHistory  bool
}

func (o *generateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&o.metricsOut, "metrics-out", "", "write run metrics in Prometheus text format to this file (- for stdout)")
	cmd.Flags().BoolVar(&o.noHistory, "no-history", false, "do not record the run in the history database")
}

type generateResult struct {
	IssueKey   string              `json:"issue_key,omitempty"`
	RunID      string              `json:"run_id,omitempty"`
	Path       generator.Path      `json:"path"`
	ModelError string              `json:"model_error,omitempty"`
	Cases      []testcase.TestCase `json:"cases"`
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate ISSUE-KEY",
		Short: "Generate test cases for a Jira story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			tr, err := a.tracker()
			if err != nil {
				return err
			}
			issue, err := tr.GetIssue(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			text := generator.StoryText(issue.Fields.Summary, issue.DescriptionText())
			out := a.generator().Generate(cmd.Context(), text, issue.AcceptanceCriteriaText())
			return finishGenerate(cmd, a, opts, issue.Key, out)
		},
	}
	opts.bind(cmd)
	return cmd
}

type generateTextOptions struct {
	generateOptions
	file     string
	criteria string
	critFile string
}

func newGenerateTextCmd(root *rootOptions) *cobra.Command {
	opts := &generateTextOptions{}
	cmd := &cobra.Command{
		Use:   "generate-text [STORY TEXT...]",
		Short: "Generate test cases from raw story text",
		Long:  `Generate test cases from story text given as arguments, in a file (--file) or on stdin (--file -), with optional acceptance criteria.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSingleStdin(opts.file, opts.critFile); err != nil {
				return err
			}
			text, err := readTextInput(cmd.InOrStdin(), opts.file, strings.Join(args, " "))
			if err != nil {
				return err
			}
			criteria, err := readTextInput(cmd.InOrStdin(), opts.critFile, opts.criteria)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" && strings.TrimSpace(criteria) == "" {
				return errors.New("no story text or acceptance criteria given")
			}

			a, err := loadApp(root)
			if err != nil {
				return err
			}
			out := a.generator().Generate(cmd.Context(), text, criteria)
			return finishGenerate(cmd, a, &opts.generateOptions, "", out)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read story text from a file (- for stdin)")
	cmd.Flags().StringVar(&opts.criteria, "ac", "", "acceptance criteria text")
	cmd.Flags().StringVar(&opts.critFile, "ac-file", "", "read acceptance criteria from a file (- for stdin)")
	return cmd
}

// finishGenerate records, prints and dumps metrics for a finished run.
func finishGenerate(cmd *cobra.Command, a *app, opts *generateOptions, issueKey string, out generator.Outcome) error {
	var runID string
	if !opts.noHistory {
		run, err := a.saveRun(cmd.Context(), issueKey, out)
		if err != nil {
			a.logger.Warn("Run not recorded: %v", err)
		} else {
			runID = run.ID
		}
	}

	w := cmd.OutOrStdout()
	if opts.json {
		res := generateResult{IssueKey: issueKey, RunID: runID, Path: out.Path, Cases: out.Cases}
		if out.ModelErr != nil {
			res.ModelError = out.ModelErr.Error()
		}
		if err := writeJSON(w, res); err != nil {
			return err
		}
	} else {
		printOutcome(w, out)
		if runID != "" {
			fmt.Fprintln(w, dimStyle.Render("run "+runID))
		}
	}
	return writeMetrics(a.metrics, opts.metricsOut, w)
}

// errStdinTwice is returned when more than one input is read from stdin.
var errStdinTwice = errors.New("only one of the story text and acceptance criteria can be read from stdin")

// checkSingleStdin rejects input files that name stdin ("-") more than once.
func checkSingleStdin(files ...string) error {
	seen := false
	for _, f := range files {
		if f != "-" {
			continue
		}
		if seen {
			return errStdinTwice
		}
		seen = true
	}
	return nil
}

// readTextInput prefers a file ("-" is stdin) over the inline value.
func readTextInput(stdin io.Reader, file, inline string) (string, error) {
	switch file {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
}
