package objectstore

import (
	"context"

	"lake-loader/internal/domain"
)

var _ domain.ObjectFetcher = (*Fetcher)(nil)

// Fetcher reads source objects named by notifications.
type Fetcher struct {
	store Store
}

// NewFetcher creates a Fetcher reading from store.
func NewFetcher(store Store) *Fetcher {
	return &Fetcher{store: store}
}

// Fetch implements domain.ObjectFetcher. Every failure is a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, bucket, key string) (*domain.Object, error) {
	obj, err := f.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, domain.ErrFetch(bucket, key, err)
	}
	return obj, nil
}
