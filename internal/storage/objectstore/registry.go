package objectstore

import (
	"context"
	"fmt"
	"sync"

	"lake-loader/internal/domain"
)

// Config holds credentials for every backend. Backends are opened on first use.
type Config struct {
	S3         S3Config
	GCSKeyFile string
	Azure      AzureConfig
	// LocalRoot roots file locations; "/" when empty.
	LocalRoot string
}

// Registry opens one Store per scheme and caches it.
type Registry struct {
	cfg    Config
	mu     sync.Mutex
	stores map[string]Store
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, stores: make(map[string]Store)}
}

// Register installs store for scheme, replacing any opened one.
func (r *Registry) Register(scheme string, store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[scheme] = store
}

// Store returns the store for scheme, opening it if needed.
func (r *Registry) Store(ctx context.Context, scheme string) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[scheme]; ok {
		return s, nil
	}

	var (
		s   Store
		err error
	)
	switch scheme {
	case SchemeS3:
		s, err = NewS3Store(ctx, r.cfg.S3)
	case SchemeGCS:
		s, err = NewGCSStore(ctx, r.cfg.GCSKeyFile)
	case SchemeAzure:
		s, err = NewAzureStore(r.cfg.Azure)
	case SchemeFile:
		root := r.cfg.LocalRoot
		if root == "" {
			root = "/"
		}
		s = NewLocalStore(root)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", scheme)
	}
	if err != nil {
		return nil, domain.ErrFatal(err, "open %s store", scheme)
	}
	r.stores[scheme] = s
	return s, nil
}

// StoreFor returns the store serving loc.
func (r *Registry) StoreFor(ctx context.Context, loc Location) (Store, error) {
	return r.Store(ctx, loc.Scheme)
}
