package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/relayscope/internal/app"
	"github.com/MrSnakeDoc/relayscope/internal/config"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/version"
)

type rootOptions struct {
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "relayscope <command> [args]",
		Short:        "Probe relays, discover what your contacts use, publish your relay lists.",
		SilenceUsage: true,
		Version:      version.String(),
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override RELAYSCOPE_LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable logs")

	root.AddCommand(
		newServeCmd(opts),
		newProbeCmd(opts),
		newSuggestCmd(opts),
		newPublishCmd(opts),
		newReviewCmd(opts),
	)
	return root
}

// load reads the environment configuration and applies flag overrides.
// One-shot commands log at warn unless asked otherwise.
func (o *rootOptions) load(oneShot bool) (*config.Config, logger.Logger) {
	cfg := config.Load()
	switch {
	case o.logLevel != "":
		cfg.LogLevel = o.logLevel
	case oneShot:
		cfg.LogLevel = "warn"
	}
	if o.pretty {
		cfg.PrettyLog = true
	}
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog)
}

func (o *rootOptions) engine(oneShot bool) (*config.Config, *app.Engine, logger.Logger, error) {
	cfg, log := o.load(oneShot)
	e, err := app.NewEngine(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, e, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
