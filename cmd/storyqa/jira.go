package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storyqa/pkg/tracker"
)

func newProjectsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List Jira projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			tr, err := a.tracker()
			if err != nil {
				return err
			}
			projects, err := tr.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), projects)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tID\tTYPE\tNAME")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Key, p.ID, p.ProjectTypeKey, p.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "search JQL",
		Short:   "Search Jira issues with JQL",
		Example: `  storyqa search 'project = XRM AND issuetype = Story ORDER BY created DESC'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			tr, err := a.tracker()
			if err != nil {
				return err
			}
			issues, err := tr.SearchIssues(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), issues)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTYPE\tSTATUS\tSUMMARY")
			for i := range issues {
				is := &issues[i]
				status := "-"
				if is.Fields.Status != nil {
					status = is.Fields.Status.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", is.Key, is.Fields.IssueType.Name, status, truncate(is.Fields.Summary, 70))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", tracker.DefaultSearchLimit, "maximum number of issues")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
