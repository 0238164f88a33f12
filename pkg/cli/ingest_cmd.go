package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/domain"
	"lake-loader/internal/notify"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest EVENT_FILE...",
		Short: "Process S3 event JSON files once",
		Long: "Runs each S3 event file (or SNS envelope) through the loader as one delivery.\n" +
			"Use \"-\" to read an event from stdin. Useful for backfills: objects already\n" +
			"committed are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deliveries := make([]domain.Delivery, 0, len(args))
			for _, name := range args {
				data, err := readEventFile(cmd, name)
				if err != nil {
					return err
				}
				notifications, err := notify.ParseS3Event(data)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				deliveries = append(deliveries, domain.Delivery{ID: name, Notifications: notifications})
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, app.Deps{Cfg: opts.cfg, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			sum := a.Orchestrator.Process(ctx, deliveries)

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := printJSON(out, sum); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(sum.Outcomes))
				for outcome, n := range sum.Outcomes {
					rows = append(rows, []string{string(outcome), strconv.Itoa(n)})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
				if err := printTable(out, []string{"OUTCOME", "NOTIFICATIONS"}, rows); err != nil {
					return err
				}
			}

			if sum.Unacked > 0 {
				return fmt.Errorf("%d of %d event files were not fully processed", sum.Unacked, sum.Deliveries)
			}
			return nil
		},
	}
}

func readEventFile(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return data, nil
}
