package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/storage/objectstore"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [TABLE_PATH]",
		Short: "List the commits of a table",
		Long:  "Lists every committed version of a table. Defaults to --table (TABLE_PATH).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			tablePath := cfg.TablePath
			if len(args) == 1 {
				tablePath = args[0]
			}
			if tablePath == "" {
				return fmt.Errorf("a table path is required (argument, --table or TABLE_PATH)")
			}
			if _, err := objectstore.ParseLocation(tablePath); err != nil {
				return err
			}

			table, db, err := app.OpenTable(cmd.Context(), cfg, objectstore.NewRegistry(app.StoreConfig(cfg)))
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close() //nolint:errcheck
			}

			commits, err := table.History(cmd.Context(), tablePath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, commits)
			}
			rows := make([][]string, 0, len(commits))
			for _, c := range commits {
				parts := make([]string, 0, len(c.Partitions))
				for _, p := range c.Partitions {
					parts = append(parts, p.Name+"="+p.Value)
				}
				rows = append(rows, []string{
					strconv.FormatInt(int64(c.Version), 10),
					c.CommittedAt.UTC().Format(time.RFC3339),
					strconv.FormatInt(c.Artifact.RowCount, 10),
					strings.Join(parts, "/"),
					c.DedupeKey,
					c.Artifact.Path,
				})
			}
			return printTable(out, []string{"VERSION", "COMMITTED", "ROWS", "PARTITIONS", "SOURCE", "ARTIFACT"}, rows)
		},
	}
}
