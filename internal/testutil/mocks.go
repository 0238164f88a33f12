// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"
	"time"

	"lake-loader/internal/domain"
)

// === Object Fetcher Mock ===

// MockObjectFetcher implements domain.ObjectFetcher for testing.
type MockObjectFetcher struct {
	FetchFn func(ctx context.Context, bucket, key string) (*domain.Object, error)
}

// Fetch implements the interface method for testing.
func (m *MockObjectFetcher) Fetch(ctx context.Context, bucket, key string) (*domain.Object, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, bucket, key)
	}
	panic("unexpected call to MockObjectFetcher.Fetch")
}

// StaticFetcher returns a fetcher serving objects from a bucket/key map and
// a NotFound-wrapped FetchError for anything else.
func StaticFetcher(objects map[string]*domain.Object) *MockObjectFetcher {
	return &MockObjectFetcher{FetchFn: func(_ context.Context, bucket, key string) (*domain.Object, error) {
		if obj, ok := objects[bucket+"/"+key]; ok {
			return obj, nil
		}
		return nil, domain.ErrFetch(bucket, key, domain.ErrNotFound("object %s/%s not found", bucket, key))
	}}
}

// === Table Store Mock ===

// MockTableStore implements domain.TableStore for testing.
type MockTableStore struct {
	ReadVersionFn   func(ctx context.Context, tablePath string) (*domain.TableState, error)
	WriteArtifactFn func(ctx context.Context, tablePath string, batch *domain.RowBatch, partitions []domain.Partition) (domain.ArtifactRef, error)
	CommitFn        func(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error)
}

// ReadVersion implements the interface method for testing.
func (m *MockTableStore) ReadVersion(ctx context.Context, tablePath string) (*domain.TableState, error) {
	if m.ReadVersionFn != nil {
		return m.ReadVersionFn(ctx, tablePath)
	}
	panic("unexpected call to MockTableStore.ReadVersion")
}

// WriteArtifact implements the interface method for testing.
func (m *MockTableStore) WriteArtifact(ctx context.Context, tablePath string, batch *domain.RowBatch, partitions []domain.Partition) (domain.ArtifactRef, error) {
	if m.WriteArtifactFn != nil {
		return m.WriteArtifactFn(ctx, tablePath, batch, partitions)
	}
	panic("unexpected call to MockTableStore.WriteArtifact")
}

// Commit implements the interface method for testing.
func (m *MockTableStore) Commit(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error) {
	if m.CommitFn != nil {
		return m.CommitFn(ctx, tablePath, req)
	}
	panic("unexpected call to MockTableStore.Commit")
}

// === Notification Source Mock ===

// MockNotificationSource implements domain.NotificationSource for testing.
type MockNotificationSource struct {
	ReceiveFn func(ctx context.Context, maxBatch int, wait time.Duration) ([]domain.Delivery, error)
}

// Receive implements the interface method for testing.
func (m *MockNotificationSource) Receive(ctx context.Context, maxBatch int, wait time.Duration) ([]domain.Delivery, error) {
	if m.ReceiveFn != nil {
		return m.ReceiveFn(ctx, maxBatch, wait)
	}
	panic("unexpected call to MockNotificationSource.Receive")
}

// === Ack Recorder ===

// AckRecorder counts acknowledgements per delivery ID. It is safe for
// concurrent use.
type AckRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	// Err is returned by every ack when set.
	Err error
}

// Ack returns an AckFunc recording acknowledgements of id.
func (r *AckRecorder) Ack(id string) domain.AckFunc {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.counts == nil {
			r.counts = make(map[string]int)
		}
		r.counts[id]++
		return r.Err
	}
}

// Count returns how many times id was acknowledged.
func (r *AckRecorder) Count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

// Total returns the number of acknowledgements across all deliveries.
func (r *AckRecorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

// Delivery builds a delivery of notifications acknowledged through r.
func (r *AckRecorder) Delivery(id string, notifications ...domain.Notification) domain.Delivery {
	return domain.Delivery{ID: id, Notifications: notifications, Ack: r.Ack(id)}
}

// Created builds an ObjectCreated:Put notification.
func Created(bucket, key, etag string) domain.Notification {
	return domain.Notification{
		EventName: "ObjectCreated:Put",
		Kind:      domain.EventCreated,
		Bucket:    bucket,
		Key:       key,
		ETag:      etag,
	}
}
