package cli

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quantmill/fexingest/internal/catalog"
	"github.com/quantmill/fexingest/internal/pipeline"
	"github.com/quantmill/fexingest/internal/warehouse"
)

// NewTransformCommand creates the transform command.
func NewTransformCommand(opts *RootOptions) *cobra.Command {
	var retry bool

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Classify, parse, clean, and load ingested files",
		Long: `Process every manifest row in RAW_INGESTED: detect the file's format by
header fingerprint, parse and clean it per the matching recipe, and load it
into the warehouse. Files with no matching recipe are quarantined; per-file
failures are recorded on the manifest row and never abort the run.

With --retry, rows in TRANSFORMATION_FAILED are processed again as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if cfg.Warehouse.URL == "" {
				return fmt.Errorf("WAREHOUSE_URL is required for transform")
			}

			cat, err := catalog.Load(cfg.Ingest.CatalogPath)
			if err != nil {
				return err
			}

			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			poolConfig, err := pgxpool.ParseConfig(cfg.Warehouse.URL)
			if err != nil {
				return fmt.Errorf("parse warehouse URL: %w", err)
			}
			poolConfig.MaxConns = int32(cfg.Warehouse.MaxConns)
			poolConfig.MinConns = int32(cfg.Warehouse.MinConns)
			poolConfig.MaxConnLifetime = cfg.Warehouse.MaxConnLifetime

			pool, err := pgxpool.NewWithConfig(cmd.Context(), poolConfig)
			if err != nil {
				return fmt.Errorf("connect warehouse: %w", err)
			}
			defer pool.Close()

			if err := pool.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping warehouse: %w", err)
			}

			loader, err := warehouse.NewPGLoader(pool, warehouse.DefaultTargets())
			if err != nil {
				return err
			}

			p := pipeline.New(st, loader, cat, pipeline.Config{
				SourceSystem:  cfg.Ingest.SourceSystem,
				MaxFileSize:   cfg.Ingest.MaxFileSize,
				MaxConcurrent: cfg.Ingest.MaxConcurrent,
			})

			result, err := p.Transform(cmd.Context(), retry)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"processed %d: %d succeeded, %d failed, %d quarantined\n",
				result.Processed, result.Succeeded, result.Failed, result.Quarantined)
			return nil
		},
	}

	cmd.Flags().BoolVar(&retry, "retry", false, "also process rows in TRANSFORMATION_FAILED")

	return cmd
}
