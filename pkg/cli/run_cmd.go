package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/config"
	"lake-loader/internal/notify"
	"lake-loader/internal/runner"
	"lake-loader/internal/sources"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		queue       string
		batchSize   int
		wait        int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume S3 event notifications from an SQS queue",
		Long: "Long-polls the queue, appends every matching object to its table and deletes\n" +
			"each message once all of its notifications are committed. Failed messages stay\n" +
			"on the queue for redelivery.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			flags := cmd.Flags()
			if flags.Changed("queue") {
				cfg.QueueURL = queue
			}
			if flags.Changed("batch-size") {
				cfg.BatchSize = min(batchSize, config.MaxBatchSize)
			}
			if flags.Changed("wait") {
				cfg.WaitSeconds = wait
			}
			if flags.Changed("concurrency") {
				cfg.Concurrency = concurrency
			}
			if cfg.QueueURL == "" {
				return fmt.Errorf("a queue URL is required (--queue or QUEUE_URL)")
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			client, err := notify.NewSQSClient(ctx, notify.SQSConfig{
				Region:   cfg.Storage.Region,
				KeyID:    cfg.Storage.KeyID,
				Secret:   cfg.Storage.Secret,
				Endpoint: cfg.SQSEndpoint,
			})
			if err != nil {
				return err
			}
			source := notify.NewSQSSource(client, cfg.QueueURL, time.Duration(cfg.VisibilityTimeout)*time.Second, opts.logger)

			stopReloads, err := startReloads(ctx, cfg, a.Sources, opts.logger)
			if err != nil {
				return err
			}
			defer stopReloads()

			return runner.NewPoller(source, a.Orchestrator, runner.Options{
				BatchSize: cfg.BatchSize,
				Wait:      app.ReceiveWait(cfg),
			}, opts.logger).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "SQS queue URL (QUEUE_URL)")
	cmd.Flags().IntVar(&batchSize, "batch-size", config.MaxBatchSize, "Messages per receive, at most 10 (BATCH_SIZE)")
	cmd.Flags().IntVar(&wait, "wait", 20, "Long-poll wait in seconds (WAIT_SECONDS)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Notifications processed at once (CONCURRENCY)")
	return cmd
}

// startReloads starts the SIGHUP watcher and, when a schedule is configured,
// the cron reload for file-based sources. The returned func stops them.
func startReloads(ctx context.Context, cfg *config.Config, holder *sources.Holder, logger *slog.Logger) (func(), error) {
	if cfg.SingleSource() {
		return func() {}, nil
	}
	go runner.ReloadOnSignal(ctx, holder, logger)
	if cfg.ReloadSchedule == "" {
		return func() {}, nil
	}
	sched, err := runner.NewReloadScheduler(cfg.ReloadSchedule, holder, logger)
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched.Stop, nil
}
