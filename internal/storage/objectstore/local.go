package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"lake-loader/internal/domain"
)

var _ Store = (*LocalStore)(nil)

const tempPrefix = ".tmp-"

// LocalStore maps bucket/key to root/bucket/key on the local filesystem.
// Local table locations have an empty bucket.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// path resolves bucket/key under the root. Keys that climb out of their
// bucket directory, such as "../other/x", are rejected.
func (s *LocalStore) path(bucket, key string) (string, error) {
	base := filepath.Join(s.root, bucket)
	p := filepath.Join(base, filepath.FromSlash(key))
	if !within(s.root, base) || !within(base, p) {
		return "", fmt.Errorf("object %s/%s: %w", bucket, key, ErrOutsideRoot)
	}
	return p, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Get implements Store. The eTag is the hex MD5 of the content, as S3
// reports for single-part uploads.
func (s *LocalStore) Get(_ context.Context, bucket, key string) (*domain.Object, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(bucket, key)
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	sum := md5.Sum(data)
	return &domain.Object{Data: data, ETag: hex.EncodeToString(sum[:])}, nil
}

// Put implements Store. Readers never observe a partially written file.
func (s *LocalStore) Put(_ context.Context, bucket, key string, data []byte) error {
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(dst, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}

// PutIfAbsent implements Store. The hard link fails atomically when the
// destination exists.
func (s *LocalStore) PutIfAbsent(_ context.Context, bucket, key string, data []byte) error {
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(dst, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return exists(bucket, key)
		}
		return fmt.Errorf("link %s: %w", dst, err)
	}
	return nil
}

func (s *LocalStore) writeTemp(dst string, data []byte) (string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// List implements Store.
func (s *LocalStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	base := filepath.Join(s.root, bucket)
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	start, err := s.path(bucket, dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", start, err)
	}
	sort.Strings(keys)
	return keys, nil
}
