package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"lake-loader/internal/domain"
)

var _ Store = (*GCSStore)(nil)

// GCSStore stores objects in Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a GCSStore. An empty keyFile uses application default
// credentials.
func NewGCSStore(ctx context.Context, keyFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Get implements Store. The object generation serves as its eTag.
func (s *GCSStore) Get(ctx context.Context, bucket, key string) (*domain.Object, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(bucket, key)
		}
		return nil, fmt.Errorf("get gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return &domain.Object{Data: data, ETag: strconv.FormatInt(r.Attrs.Generation, 10)}, nil
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	return s.write(s.client.Bucket(bucket).Object(key).NewWriter(ctx), bucket, key, data)
}

// PutIfAbsent implements Store with a DoesNotExist precondition.
func (s *GCSStore) PutIfAbsent(ctx context.Context, bucket, key string, data []byte) error {
	obj := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	err := s.write(obj.NewWriter(ctx), bucket, key, data)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return exists(bucket, key)
	}
	return err
}

func (s *GCSStore) write(w *storage.Writer, bucket, key string, data []byte) error {
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// List implements Store.
func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
}
