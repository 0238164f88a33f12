// Package objectstore reads and writes objects in S3, GCS, Azure Blob
// Storage and the local filesystem behind one interface.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"lake-loader/internal/domain"
)

// ErrExists is returned by PutIfAbsent when the key is already taken.
var ErrExists = errors.New("object already exists")

// ErrOutsideRoot is returned by LocalStore for bucket or key paths that
// leave its root.
var ErrOutsideRoot = errors.New("path escapes store root")

// Store is a flat bucket/key object store.
// Implementations: S3Store, GCSStore, AzureStore, LocalStore.
type Store interface {
	// Get returns the object bytes and its eTag. A missing object yields a
	// *domain.NotFoundError.
	Get(ctx context.Context, bucket, key string) (*domain.Object, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	// PutIfAbsent creates the object only if no object exists under key and
	// returns an error wrapping ErrExists otherwise. Exactly one of any
	// number of concurrent callers succeeds.
	PutIfAbsent(ctx context.Context, bucket, key string, data []byte) error
	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// IsNotFound reports whether err is (or wraps) a *domain.NotFoundError.
func IsNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

func notFound(bucket, key string) error {
	return domain.ErrNotFound("object %s/%s not found", bucket, key)
}

func exists(bucket, key string) error {
	return fmt.Errorf("%s/%s: %w", bucket, key, ErrExists)
}

// Storage schemes.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
	SchemeFile  = "file"
)

// Location is a parsed object-store URI.
type Location struct {
	Scheme string
	// Bucket is the bucket or container. It is empty for local paths.
	Bucket string
	// Key has no leading slash.
	Key string
}

// String renders the location as a URI.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file:///" + l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Join returns the location with elem appended to its key.
func (l Location) Join(elem ...string) Location {
	l.Key = strings.TrimPrefix(path.Join(append([]string{l.Key}, elem...)...), "/")
	return l
}

// ParseLocation parses s3://, gs://, az://, abfss://, file:// URIs and bare
// filesystem paths.
//
//	s3://bucket/path/to/table
//	gs://bucket/path/to/table
//	az://container/path/to/table
//	abfss://container@account.dfs.core.windows.net/path/to/table
//	file:///var/lake/table, ./lake/table
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(uri, "://") {
		return localLocation(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", uri, err)
	}
	key := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case SchemeS3, SchemeGCS, SchemeAzure:
		if u.Host == "" {
			return Location{}, fmt.Errorf("empty bucket in %q", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	case "abfss":
		// url.Parse reads "container" as userinfo and the account as host.
		if u.User == nil || u.User.Username() == "" {
			return Location{}, fmt.Errorf("abfss path %q missing container@account component", uri)
		}
		return Location{Scheme: SchemeAzure, Bucket: u.User.Username(), Key: key}, nil
	case SchemeFile:
		return localLocation(u.Path)
	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q in %q", u.Scheme, uri)
	}
}

func localLocation(p string) (Location, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return Location{}, fmt.Errorf("resolve path %q: %w", p, err)
	}
	return Location{Scheme: SchemeFile, Key: strings.Trim(filepath.ToSlash(abs), "/")}, nil
}
