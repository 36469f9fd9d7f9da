// Package cli provides the command-line interface for sqlgazer.
// The CLI harvests warehouse job history, evaluates the antipattern
// rules, and writes findings to the configured sink.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/gazer-labs/sqlgazer/internal/config"
	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
	"github.com/gazer-labs/sqlgazer/internal/storage"
	"github.com/gazer-labs/sqlgazer/internal/warehouse"
	bqsource "github.com/gazer-labs/sqlgazer/internal/warehouse/bigquery"
	"github.com/gazer-labs/sqlgazer/internal/warehouse/duckdb"
	"github.com/gazer-labs/sqlgazer/internal/warehouse/snowflake"
	"github.com/gazer-labs/sqlgazer/internal/warehouse/trino"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitSource     = 2
	ExitSink       = 3
	ExitInternal   = 4
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		c.errorf("sqlgazer: %v\n", err)
		switch gerrors.CodeOf(err) {
		case gerrors.CodeConfig:
			return ExitValidation
		case gerrors.CodeSource:
			return ExitSource
		case gerrors.CodeSink:
			return ExitSink
		}
		return ExitInternal
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlgazer",
		Short: "sqlgazer - SQL antipattern detection for warehouse job history",
		Long: `sqlgazer harvests a day of query jobs from a data warehouse, parses
each job's SQL, and evaluates a fixed set of antipattern rules against
the syntax tree and the table catalog.

Detected antipatterns include SELECT *, unfiltered partitioned tables,
date ranges wider than a year, DISTINCT over large tables, repeated CTE
references, and ORDER BY without LIMIT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.sqlgazer/config.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")

	cmd.AddCommand(c.newAnalyzeCmd())
	cmd.AddCommand(c.newCatalogCmd())
	cmd.AddCommand(c.newRulesCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// sourceRegistry binds each source kind to its constructor over the
// loaded config.
func (c *CLI) sourceRegistry() *warehouse.Registry {
	reg := warehouse.NewRegistry()
	reg.Register("bigquery", func(ctx context.Context) (warehouse.MetadataSource, error) {
		return bqsource.NewSource(ctx, bqsource.Config{
			Project:         c.cfg.Source.BigQuery.Project,
			Region:          c.cfg.Source.BigQuery.Region,
			Dataset:         c.cfg.Source.BigQuery.Dataset,
			CredentialsFile: c.cfg.Source.BigQuery.CredentialsFile,
		})
	})
	reg.Register("snowflake", func(ctx context.Context) (warehouse.MetadataSource, error) {
		return snowflake.NewSource(snowflake.Config{
			Account:   c.cfg.Source.Snowflake.Account,
			User:      c.cfg.Source.Snowflake.User,
			Password:  c.cfg.Source.Snowflake.Password,
			Database:  c.cfg.Source.Snowflake.Database,
			Warehouse: c.cfg.Source.Snowflake.Warehouse,
		})
	})
	reg.Register("trino", func(ctx context.Context) (warehouse.MetadataSource, error) {
		return trino.NewSource(trino.Config{
			Host:    c.cfg.Source.Trino.Host,
			Port:    c.cfg.Source.Trino.Port,
			User:    c.cfg.Source.Trino.User,
			Catalog: c.cfg.Source.Trino.Catalog,
		})
	})
	reg.Register("duckdb", func(ctx context.Context) (warehouse.MetadataSource, error) {
		return duckdb.NewSource(duckdb.Config{
			Database:     c.cfg.Source.DuckDB.Database,
			JobsFile:     c.cfg.Source.DuckDB.JobsFile,
			CatalogTable: c.cfg.Source.DuckDB.CatalogTable,
		})
	})
	return reg
}

// openSource builds the configured metadata source.
func (c *CLI) openSource(ctx context.Context) (warehouse.MetadataSource, error) {
	return c.sourceRegistry().Open(ctx, c.cfg.Source.Kind)
}

// openSink builds the configured findings sink. An empty kind returns
// nil: findings are printed, not persisted.
func (c *CLI) openSink(ctx context.Context) (storage.FindingsRepository, error) {
	switch c.cfg.Sink.Kind {
	case "":
		return nil, nil
	case "postgres":
		return storage.NewPostgresRepository(ctx, c.cfg.Sink.Postgres.DSN())
	case "sqlite":
		return storage.NewSQLiteRepository(ctx, c.cfg.Sink.SQLitePath)
	case "bigquery":
		client, err := newBigQueryClient(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewBigQueryRepository(ctx, client,
			c.cfg.Sink.BigQueryDataset, c.cfg.Sink.BigQueryTable)
	default:
		return nil, gerrors.NewConfigInvalid("sink.kind",
			fmt.Sprintf("unknown sink %q (known: postgres, sqlite, bigquery)", c.cfg.Sink.Kind))
	}
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newBigQueryClient builds a client for the BigQuery sink, reusing the
// source's project and credentials.
func newBigQueryClient(ctx context.Context, cfg *config.Config) (*bigquery.Client, error) {
	if cfg.Source.BigQuery.Project == "" {
		return nil, gerrors.NewConfigInvalid("source.bigquery.project",
			"required for the bigquery sink")
	}
	var opts []option.ClientOption
	if cfg.Source.BigQuery.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Source.BigQuery.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Source.BigQuery.Project, opts...)
	if err != nil {
		return nil, gerrors.NewSinkFailure("bigquery", err)
	}
	return client, nil
}
