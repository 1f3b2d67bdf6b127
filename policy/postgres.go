package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/xiaonanln/liveroute/util/logger"
	"github.com/xiaonanln/liveroute/util/postgres"
	"go.uber.org/multierr"
)

// DefaultPollInterval is how often PostgresSource checks for new versions.
const DefaultPollInterval = 5 * time.Second

// PolicyReader reads the newest stored version of a policy kind.
// *postgres.DB implements it.
type PolicyReader interface {
	LoadLatestPolicy(ctx context.Context, kind string) (*postgres.PolicyRow, error)
}

var _ PolicyReader = (*postgres.DB)(nil)

// PostgresSource polls the liveroute_policies table and applies versions it has not seen.
type PostgresSource struct {
	reader   PolicyReader
	store    *Store
	interval time.Duration
	clock    clock.Clock
	logger   *logger.Logger

	mu   sync.Mutex
	seen map[string]int64
}

// NewPostgresSource creates a polling source. A non-positive interval means
// DefaultPollInterval and a nil clock means wall time.
func NewPostgresSource(reader PolicyReader, store *Store, interval time.Duration, clk clock.Clock) *PostgresSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &PostgresSource{
		reader:   reader,
		store:    store,
		interval: interval,
		clock:    clk,
		logger:   logger.NewLogger("PostgresSource"),
		seen:     make(map[string]int64),
	}
}

// Poll applies the newest version of every kind when it advanced since the last poll.
// A version that fails to apply is not retried until a newer one is stored.
func (s *PostgresSource) Poll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for _, kind := range Kinds {
		row, err := s.reader.LoadLatestPolicy(ctx, kind)
		if errors.Is(err, postgres.ErrPolicyNotFound) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if seen, ok := s.seen[kind]; ok && row.Version <= seen {
			continue
		}
		s.seen[kind] = row.Version

		published, err := Apply(s.store, Document{Kind: row.Kind, ID: row.ID, Version: row.Version, Data: row.Data})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if published {
			s.logger.Infof("Applied %s %s version %d", kind, row.ID, row.Version)
		}
	}
	return errs
}

// Run polls immediately and then on every interval until ctx is cancelled.
func (s *PostgresSource) Run(ctx context.Context) error {
	if err := s.Poll(ctx); err != nil {
		s.logger.Errorf("Policy poll failed: %v", err)
	}

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				s.logger.Errorf("Policy poll failed: %v", err)
			}
		}
	}
}
