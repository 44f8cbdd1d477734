package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/relayscope/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with periodic re-probing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log := opts.load(false)
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				log.Errorf("❌ relayscope failed to start: %v", err)
				return err
			}
			return a.Run()
		},
	}
}
