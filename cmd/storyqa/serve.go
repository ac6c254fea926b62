package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"storyqa/pkg/api"
	"storyqa/pkg/config"
	"storyqa/pkg/persistence"
)

const persistQueueSize = 64

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// The worker drains the queue until it is closed after shutdown.
			// Handlers still running past the shutdown timeout have their
			// writes dropped by the closed queue.
			persist := persistence.NewQueue(persistQueueSize)
			done := make(chan struct{})
			go func() {
				defer close(done)
				store.Worker(context.WithoutCancel(cmd.Context()), persist.Requests())
			}()
			defer func() {
				persist.Close()
				<-done
			}()

			opts := api.Options{
				Generator:      a.generator(),
				Publish:        a.publishOptions(),
				DefaultProject: a.cfg.Jira.DefaultTestProject,
				ModelName:      a.cfg.Model.Name,
				Runs:           store,
				Persist:        persist,
			}
			if a.cfg.Metrics.Enabled {
				opts.Metrics = a.metrics
			}
			switch tr, err := a.tracker(); {
			case err == nil:
				opts.Tracker = tr
			case errors.Is(err, config.ErrJiraNotConfigured):
				a.logger.Warn("Jira routes disabled: %v", err)
			default:
				return err
			}

			srv, err := api.NewServer(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
