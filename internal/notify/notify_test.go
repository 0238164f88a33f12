package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
	"lake-loader/internal/service/ingestion"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

const sampleEvent = `{
  "Records": [{
    "eventVersion": "2.1",
    "eventSource": "aws:s3",
    "awsRegion": "us-east-1",
    "eventTime": "2021-04-16T12:00:00.000Z",
    "eventName": "ObjectCreated:Put",
    "s3": {
      "s3SchemaVersion": "1.0",
      "bucket": {"name": "my-bucket", "arn": "arn:aws:s3:::my-bucket"},
      "object": {
        "key": "somepath/date%3D2021-04-16/my+file.json",
        "size": 42,
        "eTag": "b21b84d653bb07b05b1e6b33684dc11b",
        "sequencer": "0055AED6DCD90281E5"
      }
    }
  }, {
    "eventVersion": "2.1",
    "eventSource": "aws:s3",
    "eventTime": "2021-04-16T12:00:01.000Z",
    "eventName": "ObjectRemoved:Delete",
    "s3": {
      "bucket": {"name": "my-bucket"},
      "object": {"key": "somepath/old.json", "sequencer": "0055AED6DCD90281E6"}
    }
  }]
}`

func snsWrap(t *testing.T, message string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]string{
		"Type":      "Notification",
		"MessageId": "22b80b92-fdea-4c2c-8f9d-bdfb0c7bf324",
		"TopicArn":  "arn:aws:sns:us-east-1:123456789012:events",
		"Message":   message,
	})
	require.NoError(t, err)
	return data
}

// recordingProcessor handles every notification as committed unless fail
// says otherwise, and records what it was given.
type recordingProcessor struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
	fail       func(n domain.Notification) bool
}

func (p *recordingProcessor) Process(_ context.Context, deliveries []domain.Delivery) ingestion.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, deliveries...)

	sum := ingestion.Summary{Deliveries: len(deliveries), Outcomes: make(map[ingestion.Outcome]int)}
	for _, d := range deliveries {
		handled := true
		for _, n := range d.Notifications {
			if p.fail != nil && p.fail(n) {
				sum.Outcomes[ingestion.OutcomeFailed]++
				handled = false
				continue
			}
			sum.Outcomes[ingestion.OutcomeCommitted]++
		}
		if !handled {
			sum.Unacked++
			continue
		}
		if d.Ack != nil {
			if err := d.Ack(context.Background()); err != nil {
				sum.AckFailed++
				continue
			}
		}
		sum.Acked++
	}
	return sum
}

func (p *recordingProcessor) received() []domain.Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Delivery(nil), p.deliveries...)
}
