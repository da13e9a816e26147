package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/services/syncer"
)

// Syncer is the sweep the scheduler drives.
type Syncer interface {
	SyncAll(ctx context.Context) ([]syncer.Result, error)
}

// Scheduler periodically syncs every active provider.
type Scheduler struct {
	syncer    Syncer
	interval  time.Duration
	logger    *slog.Logger
	startOnce sync.Once
}

// New constructs a scheduler from the sync configuration. An interval of
// zero disables background sweeps.
func New(s Syncer, cfg config.SyncConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		syncer:   s,
		interval: cfg.Interval,
		logger:   logger,
	}
}

// Enabled reports whether Start launches a loop.
func (s *Scheduler) Enabled() bool {
	return s != nil && s.syncer != nil && s.interval > 0
}

// Start begins the sweep loop until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one full sync and logs a summary.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := time.Now()
	results, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
		return
	}
	failed := 0
	for _, res := range results {
		if res.Status != syncer.StatusSuccess {
			failed++
		}
	}
	s.logger.Info("scheduled sync complete",
		"providers", len(results),
		"failed", failed,
		"duration", time.Since(started),
	)
}
