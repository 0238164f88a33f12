// Package cli implements the lake-loader command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/config"
	"lake-loader/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			var ce *domain.ConfigError
			if errors.As(err, &ce) {
				errObj["kind"] = "config"
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// rootOptions holds the persistent flags and the configuration resolved
// from them before a subcommand runs.
type rootOptions struct {
	envFile       string
	output        string
	logLevel      string
	sourcesConfig string
	tablePath     string
	partitions    string
	bucket        string
	prefix        string
	sourceRoot    string
	tableLog      string
	metaDB        string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "lake-loader",
		Short: "Load JSON object drops into lake tables",
		Long: "lake-loader appends newly created JSON objects to transactional lake tables.\n" +
			"Objects are routed to tables by bucket, key prefix and Hive-style partition\n" +
			"path segments, and every object is committed at most once.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "Environment file read before the process environment")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL)")
	pf.StringVarP(&opts.sourcesConfig, "config", "c", "", "Sources YAML file (SOURCES_CONFIG)")
	pf.StringVar(&opts.tablePath, "table", "", "Single-source mode: destination table (TABLE_PATH)")
	pf.StringVar(&opts.partitions, "partitions", "", "Single-source mode: comma-separated partition names (PARTITIONS)")
	pf.StringVar(&opts.bucket, "bucket", "", "Single-source mode: source bucket (SOURCE_BUCKET)")
	pf.StringVar(&opts.prefix, "prefix", "", "Single-source mode: key prefix regex (SOURCE_PREFIX)")
	pf.StringVar(&opts.sourceRoot, "source-root", "", "Read source objects from this local directory (SOURCE_ROOT)")
	pf.StringVar(&opts.tableLog, "table-log", "", "Commit log backend: object or sqlite (TABLE_LOG)")
	pf.StringVar(&opts.metaDB, "meta-db", "", "SQLite commit log path (META_DB_PATH)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newLambdaCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// resolve applies precedence flag > env > .env > default.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if err := validateOutputFormat(o.output); err != nil {
		return err
	}
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("config") {
		cfg.SourcesConfig = o.sourcesConfig
	}
	if flags.Changed("table") {
		cfg.TablePath = o.tablePath
	}
	if flags.Changed("partitions") {
		cfg.Partitions = config.SplitList(o.partitions)
	}
	if flags.Changed("bucket") {
		cfg.SourceBucket = o.bucket
	}
	if flags.Changed("prefix") {
		cfg.SourcePrefix = o.prefix
	}
	if flags.Changed("source-root") {
		cfg.SourceRoot = o.sourceRoot
	}
	if flags.Changed("meta-db") {
		cfg.MetaDBPath = o.metaDB
	}
	if flags.Changed("table-log") {
		if o.tableLog != config.TableLogObject && o.tableLog != config.TableLogSQLite {
			return fmt.Errorf("unsupported table log %q: use %q or %q", o.tableLog, config.TableLogObject, config.TableLogSQLite)
		}
		cfg.TableLog = o.tableLog
	}

	o.cfg = cfg
	o.logger = app.NewLogger(cfg, cmd.ErrOrStderr())
	for _, w := range cfg.Warnings {
		o.logger.Warn(w)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
