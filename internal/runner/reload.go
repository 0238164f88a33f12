// Package runner drives the long-running loader: the receive loop and the
// source configuration reload triggers.
package runner

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"lake-loader/internal/domain"
	"lake-loader/internal/metrics"
)

// Reloader re-reads the source configuration. Implemented by sources.Holder.
type Reloader interface {
	Reload() error
}

// reload runs one reload and records its result.
func reload(target Reloader, trigger string, logger *slog.Logger) {
	if err := target.Reload(); err != nil {
		metrics.ConfigReloads.WithLabelValues("failure").Inc()
		logger.Warn("source reload failed", "trigger", trigger, "error", err)
		return
	}
	metrics.ConfigReloads.WithLabelValues("success").Inc()
	logger.Debug("sources reloaded", "trigger", trigger)
}

// ReloadScheduler reloads the source configuration on a cron schedule.
type ReloadScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewReloadScheduler creates a scheduler for schedule, a standard five-field
// cron expression or a descriptor such as "@every 5m".
func NewReloadScheduler(schedule string, target Reloader, logger *slog.Logger) (*ReloadScheduler, error) {
	logger = logger.With("component", "reload-scheduler")
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { reload(target, "schedule", logger) }); err != nil {
		return nil, domain.ErrConfig(err, "invalid reload schedule %q", schedule)
	}
	logger.Info("scheduled source reload", "schedule", schedule)
	return &ReloadScheduler{cron: c, logger: logger}, nil
}

// Start starts the cron scheduler.
func (s *ReloadScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running reload to finish.
func (s *ReloadScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("reload scheduler stopped")
}

// ReloadOnSignal reloads the source configuration on every SIGHUP until
// ctx is done.
func ReloadOnSignal(ctx context.Context, target Reloader, logger *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	reloadOn(ctx, ch, target, logger.With("component", "reload-signal"))
}

func reloadOn(ctx context.Context, ch <-chan os.Signal, target Reloader, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			reload(target, sig.String(), logger)
		}
	}
}
