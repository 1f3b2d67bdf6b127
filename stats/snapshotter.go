package stats

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/xiaonanln/liveroute/util/logger"
)

// DefaultSnapshotInterval is used when the snapshotter interval is not set.
const DefaultSnapshotInterval = time.Second

// Snapshotter periodically rotates counter snapshots and drops idle endpoints.
type Snapshotter struct {
	registry    *Registry
	interval    time.Duration
	idleTimeout time.Duration
	clock       clock.Clock
	logger      *logger.Logger
}

// NewSnapshotter creates a snapshotter over reg. idleTimeout <= 0 disables eviction.
func NewSnapshotter(reg *Registry, interval, idleTimeout time.Duration) *Snapshotter {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Snapshotter{
		registry:    reg,
		interval:    interval,
		idleTimeout: idleTimeout,
		clock:       reg.Clock(),
		logger:      logger.NewLogger("Snapshotter"),
	}
}

// Run ticks until ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("Snapshotter started (interval %v, idle timeout %v)", s.interval, s.idleTimeout)
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Snapshotter stopped")
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs one rotation and eviction pass.
func (s *Snapshotter) Tick() {
	s.registry.Snapshot()
	if s.idleTimeout > 0 {
		if n := s.registry.EvictIdle(s.idleTimeout); n > 0 {
			s.logger.Infof("Evicted %d idle endpoints", n)
		}
	}
}
