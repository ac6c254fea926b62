package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storyqa/pkg/persistence"
)

type historyOptions struct {
	limit     int
	runID     string
	published bool
	json      bool
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history [ISSUE-KEY]",
		Short: "List recorded generation runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var issueKey string
			if len(args) == 1 {
				issueKey = args[0]
			}
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			switch {
			case opts.runID != "":
				run, err := store.GetRun(ctx, opts.runID)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(w, run)
				}
				fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Run %s (%s, %s)", run.ID, run.Path, run.CreatedAt.Local().Format(time.DateTime))))
				fmt.Fprintln(w)
				printCases(w, run.Cases)
				return nil

			case opts.published:
				if issueKey == "" {
					return fmt.Errorf("--published needs an issue key")
				}
				tests, err := store.ListPublished(ctx, issueKey)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(w, tests)
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TEST\tPROJECT\tCREATED\tTITLE")
				for _, t := range tests {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.TestKey, t.Project, formatAge(t.CreatedAt), truncate(t.Title, 60))
				}
				return tw.Flush()
			}

			runs, err := store.ListRuns(ctx, issueKey, opts.limit)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(w, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "No recorded runs.")
				return nil
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", persistence.DefaultListLimit, "maximum number of runs")
	cmd.Flags().StringVar(&opts.runID, "run", "", "show the cases of one run")
	cmd.Flags().BoolVar(&opts.published, "published", false, "list test issues published for the story")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print as JSON")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []persistence.Run) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tISSUE\tPATH\tCASES\tCREATED")
	for i := range runs {
		r := &runs[i]
		issue := r.IssueKey
		if issue == "" {
			issue = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, issue, r.Path, r.CaseCount, formatAge(r.CreatedAt))
	}
	_ = tw.Flush()
}

// formatAge returns a human-readable relative time.
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}
