package console

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically closes idle pages
type Reaper struct {
	registry *Registry
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewReaper creates a reaper sweeping registry every interval
func NewReaper(registry *Registry, logger *slog.Logger, interval time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start sweeps until ctx is cancelled or Stop is called
func (rp *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rp.sweep()
		case <-rp.stopCh:
			rp.logger.Info("page reaper stopped")
			return
		case <-ctx.Done():
			rp.logger.Info("page reaper context cancelled")
			return
		}
	}
}

func (rp *Reaper) sweep() {
	if n := rp.registry.Reap(); n > 0 {
		rp.logger.Info("idle pages closed",
			slog.Int("pages_closed", n),
			slog.Int("pages_open", rp.registry.Len()))
	}
}

// Stop signals the reaper to stop. It must be called at most once.
func (rp *Reaper) Stop() {
	close(rp.stopCh)
}
