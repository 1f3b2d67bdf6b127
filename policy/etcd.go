package policy

import (
	"context"
	"time"

	"github.com/xiaonanln/liveroute/cluster/etcdmanager"
	"github.com/xiaonanln/liveroute/util/backoff"
	"github.com/xiaonanln/liveroute/util/logger"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	etcdRetryInitialDelay = 500 * time.Millisecond
	etcdRetryMaxDelay     = 30 * time.Second
)

// EtcdSource keeps the store in sync with the policy keys under
// "<prefix>/policies/". Each key holds the JSON document of one kind.
type EtcdSource struct {
	mgr     *etcdmanager.EtcdManager
	store   *Store
	backoff *backoff.Backoff
	logger  *logger.Logger
}

// NewEtcdSource creates a source over a connected etcd manager.
func NewEtcdSource(mgr *etcdmanager.EtcdManager, store *Store) *EtcdSource {
	return &EtcdSource{
		mgr:     mgr,
		store:   store,
		backoff: backoff.New(etcdRetryInitialDelay, etcdRetryMaxDelay, 2.0),
		logger:  logger.NewLogger("EtcdSource"),
	}
}

// Load reads every policy key once and returns the revision of the read.
func (s *EtcdSource) Load(ctx context.Context) (int64, error) {
	kvs, rev, err := s.mgr.GetPrefixed(ctx, s.mgr.GetPoliciesPrefix())
	if err != nil {
		return 0, err
	}
	for _, kv := range kvs {
		s.applyKeyValue(kv)
	}
	s.logger.Infof("Loaded %d policy keys at revision %d", len(kvs), rev)
	return rev, nil
}

// Run loads the policies and then watches for changes until ctx is cancelled.
// When the watch breaks, it reloads with backoff and watches again.
func (s *EtcdSource) Run(ctx context.Context) error {
	for {
		rev, err := s.Load(ctx)
		if err == nil {
			// Only a watch that delivered a healthy response proves the connection;
			// a watch that dies at once keeps growing the delay.
			if s.watch(ctx, rev+1) {
				s.backoff.Reset()
			}
		} else {
			s.logger.Errorf("Failed to load policies: %v", err)
		}

		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warnf("Policy watch interrupted, retrying in %v", s.backoff.CurrentDelay())
		if err := s.backoff.Wait(ctx); err != nil {
			return nil
		}
	}
}

// watch consumes events from rev on and reports whether any healthy response arrived.
func (s *EtcdSource) watch(ctx context.Context, rev int64) bool {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchChan := s.mgr.WatchPrefix(watchCtx, s.mgr.GetPoliciesPrefix(), rev)
	if watchChan == nil {
		return false
	}
	return s.consume(ctx, watchChan)
}

// consume applies events until the channel closes, a response fails or ctx is done.
func (s *EtcdSource) consume(ctx context.Context, watchChan clientv3.WatchChan) bool {
	healthy := false
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Policy watch stopped")
			return healthy
		case watchResp, ok := <-watchChan:
			if !ok {
				s.logger.Warnf("Watch channel closed")
				return healthy
			}
			if err := watchResp.Err(); err != nil {
				s.logger.Errorf("Watch error: %v", err)
				return healthy
			}
			healthy = true
			for _, event := range watchResp.Events {
				s.handleEvent(event)
			}
		}
	}
}

func (s *EtcdSource) handleEvent(event *clientv3.Event) {
	switch event.Type {
	case clientv3.EventTypePut:
		s.applyKeyValue(event.Kv)
	case clientv3.EventTypeDelete:
		// The last published version stays in effect.
		s.logger.Warnf("Policy key %s deleted; keeping current version", string(event.Kv.Key))
	}
}

func (s *EtcdSource) applyKeyValue(kv *mvccpb.KeyValue) {
	key := string(kv.Key)
	kind, ok := s.mgr.PolicyKind(key)
	if !ok {
		return
	}
	published, err := Apply(s.store, Document{Kind: kind, Data: kv.Value})
	if err != nil {
		s.logger.Errorf("Failed to apply %s at revision %d: %v", key, kv.ModRevision, err)
		return
	}
	if published {
		s.logger.Infof("Applied %s from revision %d", kind, kv.ModRevision)
	}
}
