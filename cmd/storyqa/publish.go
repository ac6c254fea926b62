package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyqa/pkg/persistence"
	"storyqa/pkg/publish"
)

type publishOptions struct {
	project    string
	regenerate bool
	json       bool
}

func newPublishCmd(root *rootOptions) *cobra.Command {
	opts := &publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish ISSUE-KEY",
		Short: "Create linked Jira test issues for a story",
		Long: `Publish creates one test issue per test case in the target project, links it to the story and sets its resolution.
The newest recorded run for the story is used; without one, or with --regenerate, cases are generated first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			tr, err := a.tracker()
			if err != nil {
				return err
			}
			issue, err := tr.GetIssue(ctx, args[0])
			if err != nil {
				return err
			}

			cases, runID, err := a.storyCases(ctx, issue, opts.regenerate)
			if err != nil {
				return err
			}

			target := opts.project
			if target == "" {
				target = a.cfg.Jira.DefaultTestProject
			}
			projects, err := tr.ListProjects(ctx)
			if err != nil {
				a.logger.Warn("Could not list projects, resolving %q without them: %v", target, err)
			}

			result, err := publish.New(tr, a.publishOptions(), a.metrics).Publish(ctx, issue, cases, target, projects)
			if err != nil {
				return err
			}
			a.recordPublished(cmd, issue.Key, runID, result)

			w := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(w, result)
			}
			for _, c := range result.Created {
				fmt.Fprintf(w, "%s  %s\n", titleStyle.Render(c.Key), c.Title)
			}
			for _, f := range result.Failures {
				fmt.Fprintf(w, "%s  %s: %s\n", errorStyle.Render("FAILED"), f.Title, f.Error)
			}
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Published %d of %d test cases to %s", len(result.Created), len(cases), result.Project)))
			if len(result.Created) == 0 {
				return fmt.Errorf("no test cases were published")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "target project key or name (default from config)")
	cmd.Flags().BoolVar(&opts.regenerate, "regenerate", false, "generate fresh cases instead of using the newest run")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) recordPublished(cmd *cobra.Command, storyKey, runID string, result *publish.Result) {
	if len(result.Created) == 0 {
		return
	}
	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("Published tests not recorded: %v", err)
		return
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	tests := make([]persistence.PublishedTest, 0, len(result.Created))
	for _, c := range result.Created {
		tests = append(tests, persistence.PublishedTest{
			RunID:     runID,
			StoryKey:  storyKey,
			TestKey:   c.Key,
			Title:     c.Title,
			Project:   result.Project,
			CreatedAt: now,
		})
	}
	if err := store.SavePublished(cmd.Context(), tests); err != nil {
		a.logger.Warn("Published tests not recorded: %v", err)
	}
}
