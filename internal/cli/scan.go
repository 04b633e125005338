package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/scan"
)

// NewScanCommand creates the scan command.
func NewScanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]",
		Short: "Re-index produced output files into the data map",
		Long: `Walk the output directory (or the given directory) and register an
(entity, date) -> source file index entry for every recognized output file.
Index entries are first-wins: a rescan never redirects an existing lookup
to a different file. The whole scan registers as one atomic batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.Config.Ingest.OutputDir
			if len(args) == 1 {
				dir = args[0]
			}

			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := scan.New(st, opts.Config.Ingest.SourceSystem).Scan(cmd.Context(), dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"scanned %d files: %d indexed, %d skipped\n",
				result.Scanned, result.Matched, result.Skipped)
			return nil
		},
	}
}
