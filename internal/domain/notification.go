package domain

import (
	"context"
	"strings"
	"time"
)

// EventKind classifies a storage event. Only created objects trigger ingestion.
type EventKind string

// Event kinds recognised by the loader.
const (
	EventCreated EventKind = "created"
	EventOther   EventKind = "other"
)

// EventKindFor maps an S3-style event name (e.g. "ObjectCreated:Put") to an EventKind.
// Some senders prefix names with "s3:".
func EventKindFor(eventName string) EventKind {
	name := strings.TrimPrefix(eventName, "s3:")
	if strings.HasPrefix(name, "ObjectCreated:") {
		return EventCreated
	}
	return EventOther
}

// Notification describes one object-store event. Key is already decoded.
type Notification struct {
	EventName string
	Kind      EventKind
	Bucket    string
	Key       string
	Size      int64
	ETag      string
	Sequencer string
	EventTime time.Time
}

// DedupeKey returns the identity token recorded in the table log for this
// object. The eTag is the content identity; an empty eTag falls back to
// bucket and key only.
func DedupeKey(bucket, key, etag string) string {
	etag = strings.Trim(etag, `"`)
	if etag == "" {
		return "s3://" + bucket + "/" + key
	}
	return "s3://" + bucket + "/" + key + "#" + etag
}

// AckFunc acknowledges a delivery to its transport.
type AckFunc func(ctx context.Context) error

// Delivery is one transport message. A message may carry several
// notifications; it is acknowledged only when all of them were handled.
type Delivery struct {
	ID            string
	Notifications []Notification
	Ack           AckFunc
}
