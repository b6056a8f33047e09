package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/schema"
)

// rootOptions holds the global flags. Values left unset fall back to the
// environment and the env file.
type rootOptions struct {
	dbURL     string
	envFile   string
	ignore    []string
	exclusive string
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "schemasync",
		Short: "Keep a database structure in step with a declared model",
		Long: `schemasync loads the schemas, tables, columns and indexes of a MySQL, PostgreSQL or SQLite
database, applies JSON or YAML structure documents to it and emits only the DDL needed.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "Database URL (mysql://, postgres://, sqlite:// or memory://)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file to load (default: .env when present)")
	cmd.PersistentFlags().StringSliceVar(&opts.ignore, "ignore", nil, "Schemas to leave untouched (comma-separated)")
	cmd.PersistentFlags().StringVar(&opts.exclusive, "exclusive", "", "Only manage this schema")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newApplyCommand(opts))
	cmd.AddCommand(newDropTableCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

// resolve merges the flags with the configuration. Flags that were set
// explicitly win.
func (o *rootOptions) resolve(cmd *cobra.Command, dryRun io.Writer) (string, *schemasync.Options, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return "", nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.DatabaseURL = o.dbURL
	}
	if flags.Changed("ignore") {
		cfg.IgnoredSchemas = o.ignore
	}
	if flags.Changed("exclusive") {
		cfg.ExclusiveSchema = o.exclusive
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}

	if cfg.DatabaseURL == "" {
		return "", nil, fmt.Errorf("--db-url or %s must be specified", config.EnvDatabaseURL)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return "", nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return "", nil, err
	}

	return cfg.DatabaseURL, &schemasync.Options{
		IgnoredSchemas:  cfg.IgnoredSchemas,
		ExclusiveSchema: cfg.ExclusiveSchema,
		Logger:          logging.New(cmd.ErrOrStderr(), level, format),
		DryRun:          dryRun,
	}, nil
}

// withManager opens the database, hands the manager to fn and closes it.
func (o *rootOptions) withManager(cmd *cobra.Command, dryRun io.Writer, fn func(context.Context, *schema.Manager) error) error {
	url, opts, err := o.resolve(cmd, dryRun)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := schemasync.Open(ctx, url, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close database connection: %v\n", err)
		}
	}()

	return fn(ctx, m)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
