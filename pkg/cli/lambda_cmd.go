package cli

import (
	"github.com/spf13/cobra"

	"lake-loader/internal/app"
	"lake-loader/internal/notify"
)

func newLambdaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function triggered by S3 events",
		Long: "Starts the Lambda runtime loop. An invocation fails, and is retried by\n" +
			"Lambda, when any of its notifications could not be committed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx, app.Deps{Cfg: opts.cfg, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			notify.NewLambdaHandler(a.Orchestrator, opts.logger).Start(ctx)
			return nil
		},
	}
}
