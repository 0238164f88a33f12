// Package notify adapts object-store event transports (SQS, Lambda, HTTP
// webhooks) to deliveries for the ingestion orchestrator.
package notify

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"lake-loader/internal/domain"
	"lake-loader/internal/service/ingestion"
)

// Processor handles a batch of deliveries. Implemented by ingestion.Orchestrator.
type Processor interface {
	Process(ctx context.Context, deliveries []domain.Delivery) ingestion.Summary
}

// envelope accepts both a bare S3 event and an SNS notification whose
// Message is an S3 event.
type envelope struct {
	events.S3Event
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// ParseS3Event decodes an S3 event notification body. SNS envelopes are
// unwrapped. Bodies without records (such as s3:TestEvent) yield no
// notifications.
func ParseS3Event(data []byte) ([]domain.Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.ErrContent(err, "decode event")
	}
	if len(env.Records) == 0 && env.Type == "Notification" && env.Message != "" {
		return ParseS3Event([]byte(env.Message))
	}
	return FromS3Event(env.S3Event)
}

// FromS3Event converts S3 event records to notifications. Object keys are
// percent-decoded with '+' read as a space.
func FromS3Event(ev events.S3Event) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0, len(ev.Records))
	for _, r := range ev.Records {
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, domain.ErrContent(err, "decode object key %q", r.S3.Object.Key)
		}
		out = append(out, domain.Notification{
			EventName: r.EventName,
			Kind:      domain.EventKindFor(r.EventName),
			Bucket:    r.S3.Bucket.Name,
			Key:       key,
			Size:      r.S3.Object.Size,
			ETag:      r.S3.Object.ETag,
			Sequencer: r.S3.Object.Sequencer,
			EventTime: r.EventTime,
		})
	}
	return out, nil
}
