package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only ops HTTP API",
		Long: `Serve the manifest and data map index over HTTP for operators:
manifest rows by status or hash, and (entity, date) index lookups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			server := web.NewServer(st, opts.Config)

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh

				slog.Info("shutting down...")
				ctx, cancel := context.WithTimeout(context.Background(), opts.Config.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			slog.Info("server starting", "addr", opts.Config.Server.Addr())
			if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
