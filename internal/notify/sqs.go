package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"lake-loader/internal/domain"
	"lake-loader/internal/metrics"
)

var _ domain.NotificationSource = (*SQSSource)(nil)

// SQS limits for one ReceiveMessage call.
const (
	maxSQSBatch = 10
	maxSQSWait  = 20 * time.Second
)

// SQSAPI is the subset of the SQS client used by SQSSource.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConfig configures the SQS client.
type SQSConfig struct {
	Region   string
	KeyID    string
	Secret   string
	Endpoint string // for LocalStack and similar
}

// NewSQSClient creates an SQS client with static credentials when KeyID is
// set, or the default AWS credential chain otherwise.
func NewSQSClient(ctx context.Context, cfg SQSConfig) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.KeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// SQSSource receives S3 event notifications from an SQS queue. A delivery
// is one message; acknowledging it deletes the message.
type SQSSource struct {
	client            SQSAPI
	queueURL          string
	visibilityTimeout int32
	logger            *slog.Logger
}

// NewSQSSource creates an SQSSource. A zero visibilityTimeout keeps the
// queue's own setting.
func NewSQSSource(client SQSAPI, queueURL string, visibilityTimeout time.Duration, logger *slog.Logger) *SQSSource {
	return &SQSSource{
		client:            client,
		queueURL:          queueURL,
		visibilityTimeout: int32(visibilityTimeout / time.Second),
		logger:            logger.With("component", "sqs", "queue", queueURL),
	}
}

// Receive long-polls for up to maxBatch messages (at most 10) waiting up to
// wait (at most 20s). Messages whose body is not an S3 event are logged and
// left on the queue; they return after the visibility timeout and
// eventually reach the dead-letter queue.
func (s *SQSSource) Receive(ctx context.Context, maxBatch int, wait time.Duration) ([]domain.Delivery, error) {
	maxBatch = min(max(maxBatch, 1), maxSQSBatch)
	wait = min(max(wait, 0), maxSQSWait)

	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(maxBatch),
		WaitTimeSeconds:     int32(wait / time.Second),
		VisibilityTimeout:   s.visibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	deliveries := make([]domain.Delivery, 0, len(out.Messages))
	for _, msg := range out.Messages {
		id := aws.ToString(msg.MessageId)
		notifications, err := ParseS3Event([]byte(aws.ToString(msg.Body)))
		if err != nil {
			s.logger.Error("unreadable message left on queue", "message", id, "error", err)
			continue
		}
		deliveries = append(deliveries, domain.Delivery{
			ID:            id,
			Notifications: notifications,
			Ack:           s.deleteFunc(msg.ReceiptHandle),
		})
	}
	metrics.DeliveriesReceived.WithLabelValues("sqs").Add(float64(len(deliveries)))
	return deliveries, nil
}

func (s *SQSSource) deleteFunc(receiptHandle *string) domain.AckFunc {
	return func(ctx context.Context) error {
		_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(s.queueURL),
			ReceiptHandle: receiptHandle,
		})
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		return nil
	}
}
