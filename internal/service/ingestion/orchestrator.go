// Package ingestion drives notifications through matching, fetching, batch
// building and table appends, and acknowledges deliveries.
package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lake-loader/internal/domain"
	"lake-loader/internal/metrics"
	"lake-loader/internal/service/matching"
	"lake-loader/internal/service/rowbatch"
	"lake-loader/internal/service/tablewriter"
)

// Outcome is the terminal state of one notification.
type Outcome string

// Terminal outcomes. All but OutcomeFailed count as handled.
const (
	OutcomeCommitted       Outcome = "committed"
	OutcomeConflictRetried Outcome = "conflict_retried"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeNoMatch         Outcome = "no_match"
	OutcomeSkippedEvent    Outcome = "skipped_event"
	OutcomeFailed          Outcome = "failed"
)

// Handled reports whether the notification needs no redelivery.
func (o Outcome) Handled() bool { return o != OutcomeFailed }

// SnapshotProvider returns the source configuration in effect.
// Implemented by sources.Holder.
type SnapshotProvider interface {
	Snapshot() *domain.Snapshot
}

// Appender appends a batch to a table. Implemented by tablewriter.Writer.
type Appender interface {
	Append(ctx context.Context, tablePath string, batch *domain.RowBatch,
		partitions []domain.Partition, dedupeKey string) (tablewriter.Result, error)
}

// Options tunes the orchestrator.
type Options struct {
	// Concurrency bounds notifications processed at once. Defaults to 4.
	Concurrency int
	// AckTimeout bounds each acknowledgement. Defaults to 30s.
	AckTimeout time.Duration
}

// Summary counts what happened to one batch of deliveries.
type Summary struct {
	Deliveries int             `json:"deliveries"`
	Acked      int             `json:"acked"`
	Unacked    int             `json:"unacked"`
	AckFailed  int             `json:"ack_failed"`
	Outcomes   map[Outcome]int `json:"outcomes"`
}

// Orchestrator processes deliveries. It is safe for concurrent use.
type Orchestrator struct {
	sources SnapshotProvider
	fetcher domain.ObjectFetcher
	writer  Appender
	opts    Options
	logger  *slog.Logger
}

// New creates an Orchestrator.
func New(sources SnapshotProvider, fetcher domain.ObjectFetcher, writer Appender, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 30 * time.Second
	}
	return &Orchestrator{
		sources: sources,
		fetcher: fetcher,
		writer:  writer,
		opts:    opts,
		logger:  logger.With("component", "ingestion"),
	}
}

// Process handles every notification of deliveries and acknowledges each
// delivery whose notifications were all handled. Acknowledgements happen
// once, after every commit of the batch has finished. Failed deliveries are
// left unacknowledged so the transport redelivers them.
//
// Cancelling ctx stops notifications that have not started. A started
// commit and the acknowledgements still complete.
func (o *Orchestrator) Process(ctx context.Context, deliveries []domain.Delivery) Summary {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	snap := o.sources.Snapshot()
	outcomes := make([][]Outcome, len(deliveries))

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for d := range deliveries {
		outcomes[d] = make([]Outcome, len(deliveries[d].Notifications))
		for i, n := range deliveries[d].Notifications {
			if ctx.Err() != nil {
				outcomes[d][i] = OutcomeFailed
				continue
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					outcomes[d][i] = OutcomeFailed
					return nil
				}
				outcomes[d][i] = o.Handle(ctx, snap, deliveries[d].ID, n)
				return nil
			})
		}
	}
	_ = g.Wait()

	sum := Summary{Deliveries: len(deliveries), Outcomes: make(map[Outcome]int)}
	var mu sync.Mutex
	var acks errgroup.Group
	acks.SetLimit(o.opts.Concurrency)
	for d, dl := range deliveries {
		handled := true
		for _, out := range outcomes[d] {
			sum.Outcomes[out]++
			handled = handled && out.Handled()
		}
		if !handled {
			sum.Unacked++
			metrics.DeliveriesUnacked.Inc()
			o.logger.Warn("delivery left for redelivery", "delivery", dl.ID, "notifications", len(dl.Notifications))
			continue
		}
		acks.Go(func() error {
			err := o.ack(ctx, dl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.AckFailed++
				return nil
			}
			sum.Acked++
			return nil
		})
	}
	_ = acks.Wait()
	return sum
}

func (o *Orchestrator) ack(ctx context.Context, dl domain.Delivery) error {
	if dl.Ack == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.AckTimeout)
	defer cancel()
	if err := dl.Ack(ctx); err != nil {
		metrics.AckFailures.Inc()
		o.logger.Error("acknowledge delivery", "delivery", dl.ID, "error", err)
		return err
	}
	metrics.DeliveriesAcked.Inc()
	return nil
}

// Handle runs one notification to a terminal outcome against snap and logs it.
func (o *Orchestrator) Handle(ctx context.Context, snap *domain.Snapshot, deliveryID string, n domain.Notification) Outcome {
	start := time.Now()
	logger := o.logger.With("delivery", deliveryID, "bucket", n.Bucket, "key", n.Key)

	outcome, attrs, err := o.handle(ctx, snap, n)
	attrs = append(attrs, "outcome", string(outcome), "duration", time.Since(start))
	metrics.Notifications.WithLabelValues(string(outcome)).Inc()

	switch {
	case err == nil:
		logger.Info("notification handled", attrs...)
	case domain.IsNoMatch(err):
		logger.Info("notification ignored", append(attrs, "detail", err.Error())...)
	case domain.IsFatal(err):
		metrics.FatalErrors.Inc()
		logger.Error("notification failed", append(attrs, "error", err, "alarm", true)...)
	default:
		logger.Warn("notification failed", append(attrs, "error", err)...)
	}
	if outcome != OutcomeNoMatch && outcome != OutcomeSkippedEvent {
		metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	}
	return outcome
}

func (o *Orchestrator) handle(ctx context.Context, snap *domain.Snapshot, n domain.Notification) (Outcome, []any, error) {
	if n.Kind != domain.EventCreated {
		if n.EventName == "" {
			o.logger.Warn("received a record without an event name", "bucket", n.Bucket, "key", n.Key)
		}
		return OutcomeSkippedEvent, []any{"event", n.EventName}, nil
	}

	m, err := matching.Match(n, snap)
	if err != nil {
		var nm *domain.NoMatchError
		if errors.As(err, &nm) {
			return OutcomeNoMatch, []any{"reason", string(nm.Reason)}, err
		}
		return OutcomeFailed, nil, err
	}
	attrs := []any{"table", m.TablePath}

	obj, err := o.fetcher.Fetch(ctx, m.Bucket, m.Key)
	if err != nil {
		return OutcomeFailed, attrs, err
	}
	etag := n.ETag
	if etag == "" {
		etag = obj.ETag
	}
	dedupeKey := domain.DedupeKey(m.Bucket, m.Key, etag)

	batch, err := rowbatch.Build(obj.Data, m.Partitions)
	if err != nil {
		return OutcomeFailed, attrs, err
	}
	attrs = append(attrs, "rows", len(batch.Rows))

	res, err := o.writer.Append(ctx, m.TablePath, batch, m.Partitions, dedupeKey)
	attrs = append(attrs, "attempts", res.Attempts)
	if res.Attempts > 0 {
		metrics.CommitAttempts.Observe(float64(res.Attempts))
	}
	if err != nil {
		return OutcomeFailed, attrs, err
	}
	attrs = append(attrs, "version", int64(res.Version))

	switch {
	case res.NoOp:
		return OutcomeDuplicate, attrs, nil
	case res.Attempts > 1:
		metrics.RowsCommitted.WithLabelValues(m.TablePath).Add(float64(len(batch.Rows)))
		return OutcomeConflictRetried, attrs, nil
	default:
		metrics.RowsCommitted.WithLabelValues(m.TablePath).Add(float64(len(batch.Rows)))
		return OutcomeCommitted, attrs, nil
	}
}
