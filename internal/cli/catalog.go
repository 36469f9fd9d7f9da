package cli

import (
	"github.com/spf13/cobra"

	"github.com/gazer-labs/sqlgazer/internal/catalog"
	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
)

func (c *CLI) newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and snapshot table metadata",
	}
	cmd.AddCommand(c.newCatalogFetchCmd())
	cmd.AddCommand(c.newCatalogShowCmd())
	return cmd
}

func (c *CLI) newCatalogFetchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Harvest the catalog from the source and write it to a file",
		Long: `Harvest table metadata from the configured source and save it as a
YAML snapshot. Later runs with source.catalog_file set reuse the
snapshot instead of querying the warehouse again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := c.openSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			snap, err := src.Catalog(ctx, c.cfg.Source.MinRowCount)
			if err != nil {
				return gerrors.NewSourceFailure(src.Name(), "catalog harvest failed", err)
			}
			if err := catalog.SaveFile(out, snap); err != nil {
				return err
			}
			c.printf("wrote %d tables to %s\n", snap.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "catalog.yaml", "output snapshot path")
	return cmd
}

func (c *CLI) newCatalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the catalog the analyzer would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var snap *catalog.Snapshot
			if c.cfg.Source.CatalogFile != "" {
				var err error
				snap, err = catalog.LoadFile(c.cfg.Source.CatalogFile)
				if err != nil {
					return gerrors.NewSourceFailure("catalog_file", "catalog file could not be loaded", err)
				}
			} else {
				src, err := c.openSource(ctx)
				if err != nil {
					return err
				}
				defer src.Close()
				snap, err = src.Catalog(ctx, c.cfg.Source.MinRowCount)
				if err != nil {
					return gerrors.NewSourceFailure(src.Name(), "catalog harvest failed", err)
				}
			}

			if c.jsonOutput {
				return c.outputJSON(snap.Entries())
			}
			for _, e := range snap.Entries() {
				partition := e.PartitionColumn
				if partition == "" {
					partition = "-"
				}
				c.printf("%-60s rows=%-12d partition=%s\n",
					e.QualifiedName, e.ApproxRowCount, partition)
			}
			return nil
		},
	}
}
