package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/pipeline"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Discover, hash, and store source files",
		Long: `Discover CSV files in the inbox directory (or the given directory),
store each file's bytes under its SHA-256 content hash, and register a
manifest row in RAW_INGESTED. Byte-identical files seen before are counted
as duplicates; their manifest path bookkeeping is still refreshed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.Config.Ingest.InboxDir
			if len(args) == 1 {
				dir = args[0]
			}

			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			p := pipeline.New(st, nil, nil, pipeline.Config{
				SourceSystem:  opts.Config.Ingest.SourceSystem,
				MaxFileSize:   opts.Config.Ingest.MaxFileSize,
				MaxConcurrent: opts.Config.Ingest.MaxConcurrent,
			})

			result, err := p.Ingest(cmd.Context(), dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"discovered %d, stored %d, duplicates %d, failed %d\n",
				result.Discovered, result.Stored, result.Duplicates, len(result.Failures))
			for _, f := range result.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s: %s\n", f.Path, f.Reason)
			}
			return nil
		},
	}
}
