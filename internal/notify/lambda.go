package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"lake-loader/internal/domain"
	"lake-loader/internal/metrics"
	"lake-loader/internal/service/ingestion"
)

// LambdaHandler processes S3 events delivered by direct Lambda invocation.
// The invocation is the delivery: returning an error makes the Lambda
// runtime retry the whole event.
type LambdaHandler struct {
	proc   Processor
	logger *slog.Logger
}

// NewLambdaHandler creates a LambdaHandler.
func NewLambdaHandler(proc Processor, logger *slog.Logger) *LambdaHandler {
	return &LambdaHandler{proc: proc, logger: logger.With("component", "lambda")}
}

// Handle processes one invocation.
func (h *LambdaHandler) Handle(ctx context.Context, ev events.S3Event) error {
	notifications, err := FromS3Event(ev)
	if err != nil {
		return err
	}
	id := "lambda"
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		id = lc.AwsRequestID
	}
	metrics.DeliveriesReceived.WithLabelValues("lambda").Inc()

	sum := h.proc.Process(ctx, []domain.Delivery{{ID: id, Notifications: notifications}})
	if sum.Unacked > 0 {
		return fmt.Errorf("%d of %d notifications failed", sum.Outcomes[ingestion.OutcomeFailed], len(notifications))
	}
	return nil
}

// Start runs the Lambda runtime loop until ctx is done.
func (h *LambdaHandler) Start(ctx context.Context) {
	h.logger.Info("starting lambda runtime")
	lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
}
