package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storyqa/pkg/export"
	"storyqa/pkg/testcase"
)

type exportOptions struct {
	outDir     string
	pkg        string
	textFile   string
	critFile   string
	regenerate bool
	stdout     bool
}

func newExportCmd(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export [ISSUE-KEY]",
		Short: "Write a Go test skeleton for a story's test cases",
		Long: `Export renders one Go test function with a skipped subtest per test case.
With an issue key the newest recorded run is used (or cases are generated); with --text-file the cases are generated from a local file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.textFile == "" {
				return errors.New("give an issue key or --text-file")
			}
			if err := checkSingleStdin(opts.textFile, opts.critFile); err != nil {
				return err
			}
			a, err := loadApp(root)
			if err != nil {
				return err
			}

			var (
				source string
				cases  []testcase.TestCase
			)
			if len(args) == 1 {
				tr, err := a.tracker()
				if err != nil {
					return err
				}
				issue, err := tr.GetIssue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				source = issue.Key
				if cases, _, err = a.storyCases(cmd.Context(), issue, opts.regenerate); err != nil {
					return err
				}
			} else {
				text, err := readTextInput(cmd.InOrStdin(), opts.textFile, "")
				if err != nil {
					return err
				}
				criteria, err := readTextInput(cmd.InOrStdin(), opts.critFile, "")
				if err != nil {
					return err
				}
				source = strings.TrimSuffix(filepath.Base(opts.textFile), filepath.Ext(opts.textFile))
				cases = a.generator().Generate(cmd.Context(), text, criteria).Cases
			}

			src, err := export.GoTest(cases, export.Options{Package: opts.pkg, Source: source})
			if err != nil {
				return err
			}
			if opts.stdout {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}

			path := filepath.Join(opts.outDir, export.FileName(source))
			if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(path, src, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d test cases to %s\n", len(cases), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.pkg, "package", export.DefaultPackage, "Go package name of the generated file")
	cmd.Flags().StringVar(&opts.textFile, "text-file", "", "generate from story text in a file instead of Jira")
	cmd.Flags().StringVar(&opts.critFile, "ac-file", "", "acceptance criteria file used with --text-file")
	cmd.Flags().BoolVar(&opts.regenerate, "regenerate", false, "generate fresh cases instead of using the newest run")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "print the file instead of writing it")
	return cmd
}
