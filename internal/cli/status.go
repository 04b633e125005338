package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var byStatus string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize manifest lifecycle states",
		Long: `Print a count of manifest rows per lifecycle state. With --list, print
each row in the given state instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()

			if byStatus != "" {
				status := store.Status(byStatus)
				if !status.Valid() {
					return fmt.Errorf("unknown status %q", byStatus)
				}
				records, err := st.QueryByStatus(cmd.Context(), status)
				if err != nil {
					return err
				}
				for _, rec := range records {
					fmt.Fprintf(out, "%s  %s", rec.ContentHash, rec.OriginalPath)
					if rec.ErrorMessage != "" {
						fmt.Fprintf(out, "  (%s)", rec.ErrorMessage)
					}
					fmt.Fprintln(out)
				}
				return nil
			}

			for _, status := range []store.Status{
				store.StatusRawIngested,
				store.StatusTransformFailed,
				store.StatusTransformSuccess,
				store.StatusQuarantined,
			} {
				records, err := st.QueryByStatus(cmd.Context(), status)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-22s %d\n", status, len(records))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&byStatus, "list", "", "list manifest rows in the given status")

	return cmd
}
