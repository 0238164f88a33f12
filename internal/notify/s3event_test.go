package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
)

func TestParseS3Event(t *testing.T) {
	t.Parallel()
	got, err := ParseS3Event([]byte(sampleEvent))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Notification{
		EventName: "ObjectCreated:Put",
		Kind:      domain.EventCreated,
		Bucket:    "my-bucket",
		Key:       "somepath/date=2021-04-16/my file.json",
		Size:      42,
		ETag:      "b21b84d653bb07b05b1e6b33684dc11b",
		Sequencer: "0055AED6DCD90281E5",
		EventTime: time.Date(2021, 4, 16, 12, 0, 0, 0, time.UTC),
	}, got[0])
	assert.Equal(t, domain.EventOther, got[1].Kind)
	assert.Equal(t, "somepath/old.json", got[1].Key)
}

func TestParseS3Event_SNSEnvelope(t *testing.T) {
	t.Parallel()
	got, err := ParseS3Event(snsWrap(t, sampleEvent))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "my-bucket", got[0].Bucket)
}

func TestParseS3Event_NoRecords(t *testing.T) {
	t.Parallel()
	got, err := ParseS3Event([]byte(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"my-bucket"}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseS3Event_MinIO(t *testing.T) {
	t.Parallel()
	body := `{"EventName":"s3:ObjectCreated:Put","Key":"raw/events/a.json","Records":[{
		"eventVersion":"2.0","eventSource":"minio:s3","eventTime":"2024-01-02T03:04:05.000Z",
		"eventName":"s3:ObjectCreated:Put",
		"s3":{"bucket":{"name":"raw"},"object":{"key":"events%2Fa.json","size":7,"eTag":"d41d8cd98f00b204e9800998ecf8427e"}}}]}`
	got, err := ParseS3Event([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventCreated, got[0].Kind)
	assert.Equal(t, "events/a.json", got[0].Key)
}

func TestParseS3Event_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"not json", `Records`},
		{"bad escape", `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"b"},"object":{"key":"a%zz"}}}]}`},
		{"bad sns message", `{"Type":"Notification","Message":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseS3Event([]byte(tt.body))
			require.Error(t, err)
			var ce *domain.ContentError
			assert.ErrorAs(t, err, &ce)
		})
	}
}
