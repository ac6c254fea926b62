package main

import (
	"context"

	"github.com/spf13/cobra"

	"storyqa/pkg/logx"
	"storyqa/pkg/version"
)

type rootOptions struct {
	projectDir string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "storyqa",
		Short:         "Generate QA test cases from Jira stories",
		Long:          `storyqa turns a story's description and acceptance criteria into test cases, using a language model when one is configured and keyword rules otherwise, and can publish them to Jira as linked test issues.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.debug {
				logx.SetDebug(true)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logx.WithComponent(ctx, "cli"))
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.projectDir, "project-dir", "C", ".", "project directory holding .storyqa/")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newGenerateTextCmd(opts),
		newPublishCmd(opts),
		newHistoryCmd(opts),
		newProjectsCmd(opts),
		newSearchCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newSecretsCmd(opts),
		newStatsCmd(),
	)
	return cmd
}
