package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"lake-loader/internal/domain"
	"lake-loader/internal/service/ingestion"
)

// Processor handles a batch of deliveries. Implemented by ingestion.Orchestrator.
type Processor interface {
	Process(ctx context.Context, deliveries []domain.Delivery) ingestion.Summary
}

// Options tunes the receive loop.
type Options struct {
	BatchSize int           // deliveries per receive (default 10)
	Wait      time.Duration // long-poll wait per receive (default 20s)
	// ErrorBackoff and MaxErrorBackoff bound the pause after a failed
	// receive (defaults 1s and 1m).
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
	// IdleDelay pauses after an empty receive when Wait is under a second
	// (default 1s).
	IdleDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = time.Second
	}
	if o.MaxErrorBackoff <= 0 {
		o.MaxErrorBackoff = time.Minute
	}
	if o.IdleDelay <= 0 {
		o.IdleDelay = time.Second
	}
	return o
}

// Poller is the single driving loop for a pull transport: receive a batch,
// process it, repeat.
type Poller struct {
	source domain.NotificationSource
	proc   Processor
	opts   Options
	logger *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(source domain.NotificationSource, proc Processor, opts Options, logger *slog.Logger) *Poller {
	return &Poller{
		source: source,
		proc:   proc,
		opts:   opts.withDefaults(),
		logger: logger.With("component", "poller"),
	}
}

func (p *Poller) newBackoff() retry.Backoff {
	b := retry.NewExponential(p.opts.ErrorBackoff)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(p.opts.MaxErrorBackoff, b)
}

// Run receives and processes batches until ctx is done. Cancelling ctx
// stops receiving; a batch in progress finishes its started commits and
// acknowledgements first. Receive errors are retried with backoff.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "batch_size", p.opts.BatchSize, "wait", p.opts.Wait)
	backoff := p.newBackoff()
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopped")
			return nil
		}

		deliveries, err := p.source.Receive(ctx, p.opts.BatchSize, p.opts.Wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			delay, _ := backoff.Next()
			p.logger.Warn("receive failed", "error", err, "retry_in", delay)
			sleep(ctx, delay)
			continue
		}
		backoff = p.newBackoff()

		if len(deliveries) == 0 {
			if p.opts.Wait < time.Second {
				sleep(ctx, p.opts.IdleDelay)
			}
			continue
		}

		sum := p.proc.Process(ctx, deliveries)
		p.logger.Info("batch processed",
			"deliveries", sum.Deliveries,
			"acked", sum.Acked,
			"unacked", sum.Unacked,
			"ack_failed", sum.AckFailed,
		)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
