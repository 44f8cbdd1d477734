package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/relayscope/internal/publish"
	"github.com/MrSnakeDoc/relayscope/internal/sources/relaylist"
)

const clientTagUsage = "add a client tag naming RELAYSCOPE_CLIENT_NAME to published records"

// publishOptions tags records with the configured client name only when
// clientTag is set and a name is configured.
func publishOptions(clientTag bool, clientName string) publish.Options {
	return publish.Options{SecureOrigin: clientTag, ClientName: clientName}
}

func newPublishCmd(opts *rootOptions) *cobra.Command {
	var (
		file      string
		clientTag bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the configured relay lists",
		Long:  "Signs one record per non-empty category and publishes them independently.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, e, _, err := opts.engine(true)
			if err != nil {
				return err
			}

			source := e.Lists
			if file != "" {
				source = relaylist.NewLoader(file)
			}
			lists, rejected, err := source.Load()
			if err != nil {
				return err
			}
			for _, u := range rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping invalid relay url %q\n", u)
			}

			outcome, err := e.Publisher.Publish(cmd.Context(), lists, publishOptions(clientTag, cfg.ClientName))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Summary())
			if !outcome.Complete() {
				return errors.New("some categories failed to publish")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "relay list YAML (defaults to RELAYSCOPE_RELAY_FILE)")
	cmd.Flags().BoolVar(&clientTag, "client-tag", false, clientTagUsage)
	return cmd
}

func newReviewCmd(opts *rootOptions) *cobra.Command {
	var (
		rating    float64
		comment   string
		clientTag bool
	)

	cmd := &cobra.Command{
		Use:   "review <relay-url>",
		Short: "Publish a relay review with a rating between 0 and 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, e, _, err := opts.engine(true)
			if err != nil {
				return err
			}
			rec, err := e.Publisher.Review(cmd.Context(), args[0], rating, comment, publishOptions(clientTag, cfg.ClientName))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().Float64Var(&rating, "rating", 1, "rating in [0,1]")
	cmd.Flags().StringVar(&comment, "comment", "", "review text")
	cmd.Flags().BoolVar(&clientTag, "client-tag", false, clientTagUsage)
	return cmd
}
