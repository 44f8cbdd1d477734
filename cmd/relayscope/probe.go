package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [relay-url...]",
		Short: "Probe relays once and print their status",
		Long:  "Probes the given relays, or every configured relay when none is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, e, _, err := opts.engine(true)
			if err != nil {
				return err
			}

			urls := args
			if len(urls) == 0 {
				lists, _, err := e.Lists.Load()
				if err != nil {
					return err
				}
				urls = lists.All()
			}
			for _, u := range urls {
				if !domain.IsValidRelayURL(u) {
					return fmt.Errorf("not a relay url: %q", u)
				}
			}

			results := e.Prober.ProbeMany(cmd.Context(), urls)
			statuses := make([]domain.RelayStatus, 0, len(results))
			for _, s := range results {
				statuses = append(statuses, s)
			}
			sort.Slice(statuses, func(i, j int) bool { return statuses[i].Identity < statuses[j].Identity })
			return printJSON(cmd.OutOrStdout(), statuses)
		},
	}
}
