package policy

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xiaonanln/liveroute/livedb"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/errors"
	"github.com/xiaonanln/liveroute/util/logger"
	"github.com/xiaonanln/liveroute/util/metrics"
)

// Policy kinds
const (
	KindDatabases = "databases"
	KindRules     = "rules"
)

// Kinds lists every policy kind a source loads.
var Kinds = []string{KindDatabases, KindRules}

// Listener is called after a new policy version becomes visible.
type Listener func(kind string, version int64)

// Store holds the published database topology and tag rules.
// Readers load the current version without locking; a publish swaps the whole value.
type Store struct {
	databases atomic.Pointer[livedb.LiveDatabaseSpec]
	rules     atomic.Pointer[tag.RuleSet]

	publishMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener

	logger *logger.Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		logger: logger.NewLogger("PolicyStore"),
	}
}

// DatabaseSpec returns the published topology, or nil before the first publish.
func (s *Store) DatabaseSpec() *livedb.LiveDatabaseSpec {
	return s.databases.Load()
}

// RuleSet returns the published rule set, or nil before the first publish.
func (s *Store) RuleSet() *tag.RuleSet {
	return s.rules.Load()
}

// AddListener registers fn to be called after every publish.
func (s *Store) AddListener(fn Listener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *Store) notify(kind string, version int64) {
	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(kind, version)
	}
}

// PublishDatabaseSpec makes spec the current topology. Versions older than the current
// one are dropped, and a spec whose topology equals the current one is not republished.
// It reports whether spec was published.
func (s *Store) PublishDatabaseSpec(spec *livedb.LiveDatabaseSpec) (bool, error) {
	if spec == nil {
		metrics.RecordPolicyUpdate(KindDatabases, metrics.ResultError)
		return false, errors.NewPolicyError(KindDatabases, "", 0, fmt.Errorf("database spec is nil"))
	}

	s.publishMu.Lock()
	current := s.databases.Load()
	if current != nil && spec.Version < current.Version {
		s.publishMu.Unlock()
		s.logger.Warnf("Dropped database spec %s version %d older than %d", spec.ID, spec.Version, current.Version)
		metrics.RecordPolicyUpdate(KindDatabases, metrics.ResultStale)
		return false, nil
	}

	spec.Cache()
	if current != nil && !livedb.IsChanged(current.Groups, spec.Groups) {
		s.publishMu.Unlock()
		s.logger.Debugf("Database spec %s version %d has no topology change", spec.ID, spec.Version)
		metrics.RecordPolicyUpdate(KindDatabases, metrics.ResultUnchanged)
		return false, nil
	}

	s.databases.Store(spec)
	s.publishMu.Unlock()

	s.logger.Infof("Published database spec %s version %d (%d groups)", spec.ID, spec.Version, len(spec.Groups))
	metrics.RecordPolicyUpdate(KindDatabases, metrics.ResultPublished)
	metrics.SetPolicyVersion(KindDatabases, spec.Version)
	s.notify(KindDatabases, spec.Version)
	return true, nil
}

// PublishRuleSet makes rs the current rule set when its version differs from the
// current one and is not older. It reports whether rs was published.
func (s *Store) PublishRuleSet(rs *tag.RuleSet) (bool, error) {
	if rs == nil {
		metrics.RecordPolicyUpdate(KindRules, metrics.ResultError)
		return false, errors.NewPolicyError(KindRules, "", 0, fmt.Errorf("rule set is nil"))
	}

	s.publishMu.Lock()
	current := s.rules.Load()
	if current != nil && rs.Version <= current.Version {
		s.publishMu.Unlock()
		if rs.Version < current.Version {
			s.logger.Warnf("Dropped rule set %s version %d older than %d", rs.ID, rs.Version, current.Version)
			metrics.RecordPolicyUpdate(KindRules, metrics.ResultStale)
		} else {
			metrics.RecordPolicyUpdate(KindRules, metrics.ResultUnchanged)
		}
		return false, nil
	}

	rs.Cache()
	s.rules.Store(rs)
	s.publishMu.Unlock()

	s.logger.Infof("Published rule set %s version %d (%d rules)", rs.ID, rs.Version, len(rs.Rules))
	metrics.RecordPolicyUpdate(KindRules, metrics.ResultPublished)
	metrics.SetPolicyVersion(KindRules, rs.Version)
	s.notify(KindRules, rs.Version)
	return true, nil
}
