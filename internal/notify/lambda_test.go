package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
)

func sampleS3Event(t *testing.T) events.S3Event {
	t.Helper()
	var ev events.S3Event
	require.NoError(t, json.Unmarshal([]byte(sampleEvent), &ev))
	return ev
}

func TestLambdaHandler_Handle(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{}
	h := NewLambdaHandler(proc, discard())

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	require.NoError(t, h.Handle(ctx, sampleS3Event(t)))

	got := proc.received()
	require.Len(t, got, 1)
	assert.Equal(t, "req-1", got[0].ID)
	assert.Nil(t, got[0].Ack)
	assert.Len(t, got[0].Notifications, 2)
}

func TestLambdaHandler_FailureIsReturned(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{fail: func(n domain.Notification) bool { return n.Kind == domain.EventCreated }}
	h := NewLambdaHandler(proc, discard())

	err := h.Handle(context.Background(), sampleS3Event(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 notifications failed")
	assert.Equal(t, "lambda", proc.received()[0].ID)
}
