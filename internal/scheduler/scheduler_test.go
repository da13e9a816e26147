package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/services/syncer"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAll(context.Context) ([]syncer.Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []syncer.Result{
		{ProviderName: "openai", Status: syncer.StatusSuccess},
		{ProviderName: "anthropic", Status: syncer.StatusError, Error: "boom"},
	}, nil
}

func TestSchedulerDisabledWithoutInterval(t *testing.T) {
	s := New(&countingSyncer{}, config.SyncConfig{}, nil)
	if s.Enabled() {
		t.Fatalf("expected scheduler to be disabled")
	}
	s.Start(context.Background())

	var nilScheduler *Scheduler
	if nilScheduler.Enabled() {
		t.Fatalf("nil scheduler reported enabled")
	}
}

func TestSchedulerSweepsOnTick(t *testing.T) {
	sync := &countingSyncer{}
	s := New(sync, config.SyncConfig{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)

	require.Eventually(t, func() bool { return sync.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	stopped := sync.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stopped, sync.calls.Load(), "sweeps continued after cancel")
}

func TestSweepSurvivesErrors(t *testing.T) {
	sync := &countingSyncer{err: errors.New("db down")}
	s := New(sync, config.SyncConfig{Interval: time.Hour}, nil)
	s.Sweep(context.Background())
	if got := sync.calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}
