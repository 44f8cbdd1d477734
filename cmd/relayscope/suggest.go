package main

import (
	"github.com/spf13/cobra"
)

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank relays used by a subject's contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, e, _, err := opts.engine(true)
			if err != nil {
				return err
			}
			if subject == "" {
				subject = e.Publisher.Subject()
			}

			lists, _, err := e.Lists.Load()
			if err != nil {
				return err
			}
			set, err := e.Aggregator.Aggregate(cmd.Context(), subject, lists.All())
			if err != nil {
				return err
			}
			if limit > 0 && len(set.Suggestions) > limit {
				set.Suggestions = set.Suggestions[:limit]
			}
			return printJSON(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "hex public key (defaults to the signing key's)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum suggestions to print, 0 for all")
	return cmd
}
