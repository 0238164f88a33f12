package domain

import (
	"context"
	"time"
)

// Object is the content of a fetched source object.
type Object struct {
	Data []byte
	ETag string
}

// ObjectFetcher retrieves source objects by bucket and key.
// Implemented by objectstore.Fetcher.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (*Object, error)
}

// TableStore is the storage side of a versioned table.
// Implemented by lakehouse.Table.
type TableStore interface {
	// ReadVersion returns the current version, committed dedupe keys and schema.
	ReadVersion(ctx context.Context, tablePath string) (*TableState, error)
	// WriteArtifact writes batch as a new immutable data file. Nothing
	// references the file until a commit does.
	WriteArtifact(ctx context.Context, tablePath string, batch *RowBatch, partitions []Partition) (ArtifactRef, error)
	// Commit appends a log entry if the table is still at req.Expected,
	// otherwise it returns a *VersionConflictError.
	Commit(ctx context.Context, tablePath string, req CommitRequest) (TableVersion, error)
}

// CommitLog stores the transaction log of tables.
// Implemented by lakehouse.ObjectLog and repository.TableCommitRepo.
type CommitLog interface {
	Read(ctx context.Context, tablePath string) (*TableState, error)
	Append(ctx context.Context, tablePath string, req CommitRequest) (TableVersion, error)
	List(ctx context.Context, tablePath string) ([]Commit, error)
}

// NotificationSource delivers batches of notifications.
// Implemented by notify.SQSSource.
type NotificationSource interface {
	Receive(ctx context.Context, maxBatch int, wait time.Duration) ([]Delivery, error)
}
