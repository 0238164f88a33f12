package lakehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"lake-loader/internal/domain"
	"lake-loader/internal/storage/objectstore"
)

// LogDir is the directory under a table holding its commit log.
const LogDir = "_ingest_log"

var _ domain.CommitLog = (*ObjectLog)(nil)

// ObjectLog keeps each commit as an immutable object named by its zero-padded
// version. Appends use create-if-absent writes, so the store arbitrates
// between concurrent writers. Entries never change once written, which lets
// the log cache them and only fetch versions it has not seen.
type ObjectLog struct {
	stores *objectstore.Registry

	mu     sync.Mutex
	tables map[string]*tableLog
}

type tableLog struct {
	mu      sync.Mutex
	commits []domain.Commit
	keys    map[string]struct{}
}

// NewObjectLog creates an ObjectLog.
func NewObjectLog(stores *objectstore.Registry) *ObjectLog {
	return &ObjectLog{stores: stores, tables: make(map[string]*tableLog)}
}

// EntryName returns the log object name for version v.
func EntryName(v domain.TableVersion) string {
	return fmt.Sprintf("%020d.json", v)
}

func (l *ObjectLog) table(tablePath string) *tableLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tables[tablePath]
	if !ok {
		t = &tableLog{keys: make(map[string]struct{})}
		l.tables[tablePath] = t
	}
	return t
}

func (l *ObjectLog) open(ctx context.Context, tablePath string) (objectstore.Store, objectstore.Location, error) {
	loc, err := objectstore.ParseLocation(tablePath)
	if err != nil {
		return nil, objectstore.Location{}, err
	}
	store, err := l.stores.StoreFor(ctx, loc)
	if err != nil {
		return nil, objectstore.Location{}, err
	}
	return store, loc.Join(LogDir), nil
}

// refresh loads log entries newer than the cached version. The caller holds t.mu.
func (l *ObjectLog) refresh(ctx context.Context, tablePath string, t *tableLog) error {
	store, dir, err := l.open(ctx, tablePath)
	if err != nil {
		return err
	}
	keys, err := store.List(ctx, dir.Bucket, dir.Key+"/")
	if err != nil {
		return fmt.Errorf("list commit log: %w", err)
	}

	known := domain.TableVersion(len(t.commits))
	for _, key := range keys {
		v, ok := parseEntryName(path.Base(key))
		if !ok || v <= known {
			continue
		}
		if v != known+1 {
			return fmt.Errorf("commit log of %s has a gap before version %d", tablePath, v)
		}
		obj, err := store.Get(ctx, dir.Bucket, key)
		if err != nil {
			return fmt.Errorf("read commit %d: %w", v, err)
		}
		var c domain.Commit
		if err := json.Unmarshal(obj.Data, &c); err != nil {
			return fmt.Errorf("decode commit %d: %w", v, err)
		}
		if c.Version != v {
			return fmt.Errorf("commit object %s holds version %d", key, c.Version)
		}
		t.commits = append(t.commits, c)
		if c.DedupeKey != "" {
			t.keys[c.DedupeKey] = struct{}{}
		}
		known = v
	}
	return nil
}

func parseEntryName(name string) (domain.TableVersion, bool) {
	num, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return domain.TableVersion(v), true
}

func (t *tableLog) state() *domain.TableState {
	st := &domain.TableState{
		Version:    domain.TableVersion(len(t.commits)),
		DedupeKeys: make(map[string]struct{}, len(t.keys)),
	}
	for k := range t.keys {
		st.DedupeKeys[k] = struct{}{}
	}
	if n := len(t.commits); n > 0 {
		st.Schema = t.commits[n-1].Schema
	}
	return st
}

// Read implements domain.CommitLog.
func (l *ObjectLog) Read(ctx context.Context, tablePath string) (*domain.TableState, error) {
	t := l.table(tablePath)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := l.refresh(ctx, tablePath, t); err != nil {
		return nil, err
	}
	return t.state(), nil
}

// Append implements domain.CommitLog. The entry for req.Expected+1 is
// created only if no other writer created it first.
func (l *ObjectLog) Append(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error) {
	t := l.table(tablePath)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := l.refresh(ctx, tablePath, t); err != nil {
		return 0, err
	}
	conflict := &domain.VersionConflictError{Table: tablePath, Expected: req.Expected}
	if domain.TableVersion(len(t.commits)) != req.Expected {
		return 0, conflict
	}
	if _, dup := t.keys[req.DedupeKey]; dup && req.DedupeKey != "" {
		return 0, conflict
	}

	c := domain.Commit{
		Version:     req.Expected + 1,
		Artifact:    req.Artifact,
		Partitions:  req.Partitions,
		DedupeKey:   req.DedupeKey,
		Schema:      req.Schema,
		CommittedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(c)
	if err != nil {
		return 0, fmt.Errorf("encode commit: %w", err)
	}

	store, dir, err := l.open(ctx, tablePath)
	if err != nil {
		return 0, err
	}
	entry := dir.Join(EntryName(c.Version))
	if err := store.PutIfAbsent(ctx, entry.Bucket, entry.Key, data); err != nil {
		if errors.Is(err, objectstore.ErrExists) {
			return 0, conflict
		}
		return 0, fmt.Errorf("write commit %d: %w", c.Version, err)
	}

	t.commits = append(t.commits, c)
	if c.DedupeKey != "" {
		t.keys[c.DedupeKey] = struct{}{}
	}
	return c.Version, nil
}

// List implements domain.CommitLog.
func (l *ObjectLog) List(ctx context.Context, tablePath string) ([]domain.Commit, error) {
	t := l.table(tablePath)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := l.refresh(ctx, tablePath, t); err != nil {
		return nil, err
	}
	out := make([]domain.Commit, len(t.commits))
	copy(out, t.commits)
	return out, nil
}
