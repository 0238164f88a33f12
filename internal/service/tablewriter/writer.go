// Package tablewriter appends row batches to versioned tables with
// optimistic concurrency and at-most-once semantics per dedupe key.
package tablewriter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"lake-loader/internal/domain"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxAttempts   = 8
	DefaultBaseDelay     = 100 * time.Millisecond
	DefaultMaxDelay      = 5 * time.Second
	DefaultCommitTimeout = 30 * time.Second
)

// Options bounds the conflict retry loop.
type Options struct {
	// MaxAttempts is the number of commit attempts before giving up.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// CommitTimeout bounds a commit once started. A started commit is not
	// cancelled by the caller's context.
	CommitTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.CommitTimeout <= 0 {
		o.CommitTimeout = DefaultCommitTimeout
	}
	return o
}

// Result describes a finished append.
type Result struct {
	// Version is the committed version, or the current version for a no-op.
	Version domain.TableVersion
	// NoOp is set when the dedupe key was already committed.
	NoOp bool
	// Attempts counts table reads, including the first.
	Attempts int
}

// Writer appends batches to tables through a TableStore.
type Writer struct {
	store  domain.TableStore
	opts   Options
	logger *slog.Logger
}

// New creates a Writer.
func New(store domain.TableStore, opts Options, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger.With("component", "tablewriter"),
	}
}

type state int

const (
	stateReading state = iota
	stateReconciling
	stateWriting
	stateCommitting
	stateConflict
	stateExhausted
)

func (w *Writer) backoff() retry.Backoff {
	b := retry.NewExponential(w.opts.BaseDelay)
	b = retry.WithJitterPercent(20, b)
	return retry.WithCappedDuration(w.opts.MaxDelay, b)
}

// Append commits batch to tablePath unless dedupeKey is already part of the
// table. Schema conflicts fail immediately; version conflicts are retried
// with backoff until MaxAttempts, then a *domain.VersionConflictError is
// returned. An artifact written for a lost attempt is reused when the
// reconciled schema is unchanged and otherwise left unreferenced.
func (w *Writer) Append(
	ctx context.Context,
	tablePath string,
	batch *domain.RowBatch,
	partitions []domain.Partition,
	dedupeKey string,
) (Result, error) {
	logger := w.logger.With("table", tablePath, "dedupe_key", dedupeKey)
	backoff := w.backoff()

	var (
		st        = stateReading
		res       Result
		table     *domain.TableState
		schema    domain.Schema
		artifact  *domain.ArtifactRef
		artSchema domain.Schema
	)

	for {
		switch st {
		case stateReading:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Attempts++
			ts, err := w.store.ReadVersion(ctx, tablePath)
			if err != nil {
				return res, fmt.Errorf("read table version: %w", err)
			}
			table = ts
			res.Version = ts.Version
			if dedupeKey != "" && ts.HasDedupeKey(dedupeKey) {
				res.NoOp = true
				return res, nil
			}
			st = stateReconciling

		case stateReconciling:
			s, err := Reconcile(table.Schema, batch.Schema, tablePath)
			if err != nil {
				return res, err
			}
			schema = s
			if artifact != nil && artSchema.Equal(schema) {
				st = stateCommitting
			} else {
				st = stateWriting
			}

		case stateWriting:
			ref, err := w.store.WriteArtifact(ctx, tablePath,
				&domain.RowBatch{Schema: schema, Rows: batch.Rows}, partitions)
			if err != nil {
				return res, fmt.Errorf("write artifact: %w", err)
			}
			artifact, artSchema = &ref, schema
			st = stateCommitting

		case stateCommitting:
			v, err := w.commit(ctx, tablePath, domain.CommitRequest{
				Expected:   table.Version,
				Artifact:   *artifact,
				Partitions: partitions,
				DedupeKey:  dedupeKey,
				Schema:     schema,
			})
			if err == nil {
				res.Version = v
				return res, nil
			}
			if !domain.IsVersionConflict(err) {
				return res, fmt.Errorf("commit: %w", err)
			}
			st = stateConflict

		case stateConflict:
			delay, stop := backoff.Next()
			if stop || res.Attempts >= w.opts.MaxAttempts {
				st = stateExhausted
				continue
			}
			logger.Debug("commit conflict, retrying",
				"expected_version", table.Version, "attempt", res.Attempts, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return res, ctx.Err()
			case <-timer.C:
			}
			st = stateReading

		case stateExhausted:
			return res, &domain.VersionConflictError{
				Table:    tablePath,
				Expected: table.Version,
				Attempts: res.Attempts,
			}
		}
	}
}

func (w *Writer) commit(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.CommitTimeout)
	defer cancel()
	return w.store.Commit(ctx, tablePath, req)
}
