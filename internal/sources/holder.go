package sources

import (
	"log/slog"
	"sync/atomic"

	"lake-loader/internal/domain"
)

// LoadFunc produces a fresh snapshot.
type LoadFunc func() (*domain.Snapshot, error)

// Holder publishes the snapshot in effect. Readers take a snapshot once and
// keep it for the rest of their pass.
type Holder struct {
	load    LoadFunc
	current atomic.Pointer[domain.Snapshot]
	logger  *slog.Logger
}

// NewHolder loads the initial snapshot. A failure here is fatal to startup.
func NewHolder(load LoadFunc, logger *slog.Logger) (*Holder, error) {
	snap, err := load()
	if err != nil {
		return nil, err
	}
	h := &Holder{load: load, logger: logger.With("component", "sources")}
	h.current.Store(snap)
	return h, nil
}

// Static returns a Holder that always serves snap.
func Static(snap *domain.Snapshot, logger *slog.Logger) *Holder {
	h := &Holder{
		load:   func() (*domain.Snapshot, error) { return snap, nil },
		logger: logger.With("component", "sources"),
	}
	h.current.Store(snap)
	return h
}

// Snapshot returns the snapshot in effect.
func (h *Holder) Snapshot() *domain.Snapshot {
	return h.current.Load()
}

// Reload replaces the snapshot. On failure the previous snapshot stays in
// effect and the error is logged and returned.
func (h *Holder) Reload() error {
	snap, err := h.load()
	if err != nil {
		h.logger.Error("configuration reload failed, keeping previous sources", "error", err)
		return err
	}
	h.current.Store(snap)
	h.logger.Info("configuration reloaded", "sources", len(snap.Sources))
	return nil
}
