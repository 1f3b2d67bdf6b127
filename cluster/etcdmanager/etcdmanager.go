package etcdmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xiaonanln/liveroute/util/logger"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	DefaultPrefix       = "/liveroute"
	DefaultDialTimeout  = 5 * time.Second
	connectCheckTimeout = 2 * time.Second
)

// ErrKeyNotFound is returned by Get when the key does not exist
var ErrKeyNotFound = errors.New("key not found")

// EtcdManager manages the connection to etcd and the key layout under the global prefix
type EtcdManager struct {
	mu        sync.RWMutex
	client    *clientv3.Client
	endpoints []string
	prefix    string
	logger    *logger.Logger
}

// NewEtcdManager creates a new etcd manager.
//
// prefix is the root path for all keys; an empty prefix means DefaultPrefix ("/liveroute").
// Policies are stored under "<prefix>/policies/", so several deployments or test runs can
// share one etcd instance.
//
//	mgr, _ := NewEtcdManager([]string{"localhost:2379"}, "")         // uses "/liveroute"
//	mgr, _ := NewEtcdManager([]string{"localhost:2379"}, "/staging") // uses "/staging"
func NewEtcdManager(endpoints []string, prefix string) (*EtcdManager, error) {
	var cleaned []string
	for _, ep := range endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			cleaned = append(cleaned, ep)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one etcd endpoint is required")
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return nil, fmt.Errorf("prefix %q must contain a path segment", "/")
	}

	return &EtcdManager{
		endpoints: cleaned,
		prefix:    prefix,
		logger:    logger.NewLogger("EtcdManager"),
	}, nil
}

// Connect establishes a connection to etcd and verifies it with a read
func (mgr *EtcdManager) Connect(ctx context.Context) error {
	mgr.logger.Infof("Connecting to etcd at %v", mgr.endpoints)

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   mgr.endpoints,
		DialTimeout: DefaultDialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, connectCheckTimeout)
	defer cancel()
	if _, err := cli.Get(checkCtx, mgr.prefix+"/health-check"); err != nil {
		cli.Close()
		return fmt.Errorf("etcd at %v is not reachable: %w", mgr.endpoints, err)
	}

	mgr.mu.Lock()
	mgr.client = cli
	mgr.mu.Unlock()

	mgr.logger.Infof("Connected to etcd at %v", mgr.endpoints)
	return nil
}

// Close closes the etcd connection. It is safe to call more than once.
func (mgr *EtcdManager) Close() error {
	mgr.mu.Lock()
	cli := mgr.client
	mgr.client = nil
	mgr.mu.Unlock()

	if cli == nil {
		return nil
	}
	mgr.logger.Infof("Closing etcd connection")
	return cli.Close()
}

// GetClient returns the etcd client, or nil before Connect
func (mgr *EtcdManager) GetClient() *clientv3.Client {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.client
}

// GetPrefix returns the global prefix used for all etcd keys
func (mgr *EtcdManager) GetPrefix() string {
	return mgr.prefix
}

// GetPoliciesPrefix returns the prefix of all policy keys, e.g. "/liveroute/policies/"
func (mgr *EtcdManager) GetPoliciesPrefix() string {
	return mgr.prefix + "/policies/"
}

// PolicyKey returns the key holding the policy document of the given kind
func (mgr *EtcdManager) PolicyKey(kind string) string {
	return mgr.GetPoliciesPrefix() + kind
}

// PolicyKind extracts the kind from a policy key, or returns false when key is not a policy key
func (mgr *EtcdManager) PolicyKind(key string) (string, bool) {
	prefix := mgr.GetPoliciesPrefix()
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

func (mgr *EtcdManager) connected() (*clientv3.Client, error) {
	cli := mgr.GetClient()
	if cli == nil {
		return nil, fmt.Errorf("etcd client not connected")
	}
	return cli, nil
}

// Put stores a key-value pair in etcd
func (mgr *EtcdManager) Put(ctx context.Context, key, value string) error {
	cli, err := mgr.connected()
	if err != nil {
		return err
	}
	if _, err := cli.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	mgr.logger.Debugf("Put key=%s (%d bytes)", key, len(value))
	return nil
}

// Get retrieves a value from etcd, returning ErrKeyNotFound when the key is absent
func (mgr *EtcdManager) Get(ctx context.Context, key string) (string, error) {
	cli, err := mgr.connected()
	if err != nil {
		return "", err
	}
	resp, err := cli.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return string(resp.Kvs[0].Value), nil
}

// GetPrefixed returns every key-value under prefix together with the store revision
// of the read, so a watch can resume right after it.
func (mgr *EtcdManager) GetPrefixed(ctx context.Context, prefix string) ([]*mvccpb.KeyValue, int64, error) {
	cli, err := mgr.connected()
	if err != nil {
		return nil, 0, err
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get prefix %s: %w", prefix, err)
	}
	mgr.logger.Debugf("Retrieved %d keys under %s", len(resp.Kvs), prefix)
	return resp.Kvs, resp.Header.Revision, nil
}

// Delete removes a key from etcd
func (mgr *EtcdManager) Delete(ctx context.Context, key string) error {
	cli, err := mgr.connected()
	if err != nil {
		return err
	}
	if _, err := cli.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	mgr.logger.Debugf("Delete key=%s", key)
	return nil
}

// WatchPrefix watches every key under prefix starting at revision rev (0 means now).
// It returns nil when the client is not connected.
func (mgr *EtcdManager) WatchPrefix(ctx context.Context, prefix string, rev int64) clientv3.WatchChan {
	cli := mgr.GetClient()
	if cli == nil {
		mgr.logger.Errorf("etcd client not connected")
		return nil
	}

	opts := []clientv3.OpOption{clientv3.WithPrefix()}
	if rev > 0 {
		opts = append(opts, clientv3.WithRev(rev))
	}
	mgr.logger.Infof("Watching prefix=%s from revision %d", prefix, rev)
	return cli.Watch(ctx, prefix, opts...)
}
