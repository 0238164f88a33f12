package cli

import (
	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/middleware"
	"lake-loader/internal/notify"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept S3-style event notifications over HTTP",
		Long: "Serves POST /events for bucket notification webhooks (for example MinIO).\n" +
			"A request is answered 200 only after every notification in it is committed;\n" +
			"otherwise 503 asks the sender to retry. Also serves /healthz and /metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			if err := cfg.ValidateWebhook(); err != nil {
				return err
			}
			if cfg.WebhookToken == "" {
				opts.logger.Warn("WEBHOOK_TOKEN not set: POST /events accepts unauthenticated requests")
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			stopReloads, err := startReloads(ctx, cfg, a.Sources, opts.logger)
			if err != nil {
				return err
			}
			defer stopReloads()

			webhook := notify.NewWebhook(a.Orchestrator, notify.WebhookConfig{
				Token: cfg.WebhookToken,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
			}, opts.logger)
			return webhook.Serve(ctx, cfg.ListenAddr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address (LISTEN_ADDR)")
	return cmd
}
