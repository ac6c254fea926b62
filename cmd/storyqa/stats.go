package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storyqa/pkg/metrics"
)

const defaultPrometheusURL = "http://localhost:9090"

func newStatsCmd() *cobra.Command {
	var (
		url     string
		byModel bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token and generation totals from Prometheus",
		Long:  `Stats queries a Prometheus server that scrapes "storyqa serve" instances at /metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qs, err := metrics.NewQueryService(url)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if byModel {
				usage, err := qs.GetUsageByModel(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(w, usage)
				}
				models := make([]string, 0, len(usage))
				for m := range usage {
					models = append(models, m)
				}
				sort.Strings(models)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "MODEL\tREQUESTS\tFAILED\tPROMPT\tCOMPLETION\tTOTAL")
				for _, m := range models {
					u := usage[m]
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", m, u.Requests, u.FailedRequests, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
				}
				return tw.Flush()
			}

			usage, err := qs.GetUsage(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(w, usage)
			}
			fmt.Fprintf(w, "Model requests:    %d (%d failed)\n", usage.Requests, usage.FailedRequests)
			fmt.Fprintf(w, "Tokens:            %d prompt, %d completion, %d total\n", usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
			fmt.Fprintf(w, "Generations:       %d model, %d rules\n", usage.Generations["model"], usage.Generations["rules"])
			fmt.Fprintf(w, "Published tests:   %d\n", usage.PublishedTests)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "prometheus-url", defaultPrometheusURL, "Prometheus server address")
	cmd.Flags().BoolVar(&byModel, "by-model", false, "break token usage down per model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
