// Package cli implements the fexingest command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/config"
	"github.com/quantmill/fexingest/internal/logging"
	"github.com/quantmill/fexingest/internal/store"
)

// RootOptions holds state shared by all subcommands.
type RootOptions struct {
	Config *config.Config
}

// NewRootCommand creates the fexingest root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fexingest",
		Short: "Fingerprinting, content-addressable ingestion for exchange CSV exports",
		Long: `fexingest ingests exchange-published CSV files whose column layout varies
release to release. Files are stored once per content hash, classified by an
order/case/whitespace-invariant header fingerprint, parsed and cleaned per
the matching recipe, and loaded into the warehouse with idempotent upserts.

Configuration comes from environment variables (see internal/config); a
.env file in the working directory is loaded if present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			opts.Config = cfg
			return nil
		},
	}

	cmd.AddCommand(
		NewIngestCommand(opts),
		NewTransformCommand(opts),
		NewScanCommand(opts),
		NewStatusCommand(opts),
		NewServeCommand(opts),
	)

	return cmd
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// openStore opens the manifest/content store from config.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", opts.Config.Store.Path, err)
	}
	return st, nil
}
