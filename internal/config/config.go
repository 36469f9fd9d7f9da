// Package config provides configuration loading for the sqlgazer CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	gerrors "github.com/gazer-labs/sqlgazer/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	// Rules configuration: thresholds and per-rule enable flags
	Rules RulesConfig `mapstructure:"rules"`

	// Source configuration (where job history and catalog facts come from)
	Source SourceConfig `mapstructure:"source"`

	// Sink configuration (where findings go)
	Sink SinkConfig `mapstructure:"sink"`

	// Analysis configuration
	Analysis AnalysisConfig `mapstructure:"analysis"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// RulesConfig holds the rule thresholds and enable flags.
type RulesConfig struct {
	// LargeTableRowCount is the row-count threshold above which a table
	// counts as large. Comparison is >=.
	LargeTableRowCount int64 `mapstructure:"large_table_row_count"`

	// DistinctFunctionRowCount is the row-count threshold for
	// COUNT(DISTINCT) detection. Comparison is >=.
	DistinctFunctionRowCount int64 `mapstructure:"distinct_function_row_count"`

	// Disabled lists rule names excluded from evaluation.
	Disabled []string `mapstructure:"disabled"`
}

// SourceConfig holds warehouse metadata source configuration.
type SourceConfig struct {
	// Kind selects the source implementation: bigquery, snowflake,
	// trino, or duckdb.
	Kind string `mapstructure:"kind"`

	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Trino     TrinoConfig     `mapstructure:"trino"`
	DuckDB    DuckDBConfig    `mapstructure:"duckdb"`

	// MinRowCount limits catalog harvesting to tables at or above this
	// row count.
	MinRowCount int64 `mapstructure:"min_row_count"`

	// CatalogFile optionally loads the catalog from a YAML snapshot
	// instead of harvesting it from the source.
	CatalogFile string `mapstructure:"catalog_file"`
}

// BigQueryConfig holds BigQuery source configuration.
type BigQueryConfig struct {
	Project         string `mapstructure:"project"`
	Region          string `mapstructure:"region"`
	Dataset         string `mapstructure:"dataset"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// SnowflakeConfig holds Snowflake source configuration.
type SnowflakeConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	Warehouse string `mapstructure:"warehouse"`
}

// TrinoConfig holds Trino source configuration.
type TrinoConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Catalog string `mapstructure:"catalog"`
}

// DuckDBConfig holds the offline file source configuration.
type DuckDBConfig struct {
	// Database is the DuckDB database path, or :memory:.
	Database string `mapstructure:"database"`

	// JobsFile is an exported job-history file (JSON/CSV/Parquet).
	JobsFile string `mapstructure:"jobs_file"`

	// CatalogTable optionally names a table holding catalog facts.
	CatalogTable string `mapstructure:"catalog_table"`
}

// SinkConfig holds findings persistence configuration.
type SinkConfig struct {
	// Kind selects the sink implementation: postgres, sqlite, or
	// bigquery. Empty means findings go to stdout only.
	Kind string `mapstructure:"kind"`

	Postgres PostgresConfig `mapstructure:"postgres"`

	// SQLitePath is the local findings database path.
	SQLitePath string `mapstructure:"sqlite_path"`

	// BigQuery sink settings reuse the source's project; these name the
	// destination.
	BigQueryDataset string `mapstructure:"bigquery_dataset"`
	BigQueryTable   string `mapstructure:"bigquery_table"`
}

// PostgresConfig holds the Postgres sink configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// AnalysisConfig holds batch evaluation configuration.
type AnalysisConfig struct {
	// Workers is the analysis worker pool size.
	Workers int `mapstructure:"workers"`

	// Dialect is the SQL dialect name passed to the parser.
	Dialect string `mapstructure:"dialect"`

	// MaxJobs caps the number of jobs analyzed per run. Zero means no cap.
	MaxJobs int `mapstructure:"max_jobs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			LargeTableRowCount:       1000,
			DistinctFunctionRowCount: 1000,
		},
		Source: SourceConfig{
			Kind:        "bigquery",
			MinRowCount: 1000,
			BigQuery: BigQueryConfig{
				Region: "us",
			},
			Trino: TrinoConfig{
				Host: "localhost",
				Port: 8080,
				User: "sqlgazer",
			},
			DuckDB: DuckDBConfig{
				Database: ":memory:",
			},
		},
		Sink: SinkConfig{
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "sqlgazer",
				Name:    "sqlgazer",
				SSLMode: "disable",
			},
			SQLitePath:      "sqlgazer.db",
			BigQueryDataset: "optimization",
			BigQueryTable:   "antipattern_findings",
		},
		Analysis: AnalysisConfig{
			Workers: 8,
			Dialect: "ansi",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".sqlgazer"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("SQLGAZER")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks threshold and pool settings before a run starts.
func (c *Config) Validate() error {
	if c.Rules.LargeTableRowCount < 0 {
		return gerrors.NewConfigInvalid("rules.large_table_row_count", "must be non-negative")
	}
	if c.Rules.DistinctFunctionRowCount < 0 {
		return gerrors.NewConfigInvalid("rules.distinct_function_row_count", "must be non-negative")
	}
	if c.Analysis.Workers < 1 {
		return gerrors.NewConfigInvalid("analysis.workers", "must be at least 1")
	}
	if c.Analysis.Dialect == "" {
		return gerrors.NewConfigInvalid("analysis.dialect", "must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules.large_table_row_count", 1000)
	v.SetDefault("rules.distinct_function_row_count", 1000)
	v.SetDefault("source.kind", "bigquery")
	v.SetDefault("source.min_row_count", 1000)
	v.SetDefault("source.bigquery.region", "us")
	v.SetDefault("source.trino.host", "localhost")
	v.SetDefault("source.trino.port", 8080)
	v.SetDefault("source.trino.user", "sqlgazer")
	v.SetDefault("source.duckdb.database", ":memory:")
	v.SetDefault("sink.postgres.host", "localhost")
	v.SetDefault("sink.postgres.port", 5432)
	v.SetDefault("sink.postgres.user", "sqlgazer")
	v.SetDefault("sink.postgres.name", "sqlgazer")
	v.SetDefault("sink.postgres.sslmode", "disable")
	v.SetDefault("sink.sqlite_path", "sqlgazer.db")
	v.SetDefault("sink.bigquery_dataset", "optimization")
	v.SetDefault("sink.bigquery_table", "antipattern_findings")
	v.SetDefault("analysis.workers", 8)
	v.SetDefault("analysis.dialect", "ansi")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// RuleEnabled reports whether the named rule should be evaluated.
func (c *RulesConfig) RuleEnabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return false
		}
	}
	return true
}
