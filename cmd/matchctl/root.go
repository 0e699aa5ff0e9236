package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/pkg/logger"
)

const app = "matchctl"

// cli carries the state shared by every subcommand.
type cli struct {
	logLevel   string
	normalizer *normalize.Normalizer
	engine     *matching.Engine
	log        logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          app,
		Short:        "matchctl scores luxury talent against openings and resolves team permissions",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := logger.SetLevelString(c.logLevel); err != nil {
				return err
			}
			engine, err := matching.New()
			if err != nil {
				return err
			}
			c.engine = engine
			c.normalizer = normalize.New()
			c.log = logger.Get().Named(app)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.scoreCmd(),
		c.rankCmd(),
		c.checkCmd(),
		c.tokenCmd(),
		c.loadtestCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
