package main

import (
	"context"
	"fmt"

	"github.com/xiaonanln/liveroute/cluster/etcdmanager"
	"github.com/xiaonanln/liveroute/policy"
	"github.com/xiaonanln/liveroute/util/postgres"
)

// backend is where policy documents are stored for route agents to pick up.
type backend interface {
	Name() string
	Put(ctx context.Context, doc policy.Document) error
	// Versions returns the newest stored version of every kind.
	Versions(ctx context.Context) (map[string]int64, error)
	Close() error
}

type postgresBackend struct {
	db *postgres.DB
}

func newPostgresBackend(ctx context.Context, cfg *postgres.Config) (*postgresBackend, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &postgresBackend{db: db}, nil
}

func (b *postgresBackend) Name() string { return "postgres" }

func (b *postgresBackend) Put(ctx context.Context, doc policy.Document) error {
	return b.db.SavePolicy(ctx, doc.Kind, doc.ID, doc.Version, doc.Data)
}

func (b *postgresBackend) Versions(ctx context.Context) (map[string]int64, error) {
	return b.db.LatestVersions(ctx)
}

func (b *postgresBackend) Close() error {
	return b.db.Close()
}

// etcdBackend keeps only the current document of each kind; older versions are overwritten.
type etcdBackend struct {
	mgr *etcdmanager.EtcdManager
}

func newEtcdBackend(ctx context.Context, endpoints []string, prefix string) (*etcdBackend, error) {
	mgr, err := etcdmanager.NewEtcdManager(endpoints, prefix)
	if err != nil {
		return nil, err
	}
	if err := mgr.Connect(ctx); err != nil {
		return nil, err
	}
	return &etcdBackend{mgr: mgr}, nil
}

func (b *etcdBackend) Name() string { return "etcd" }

func (b *etcdBackend) Put(ctx context.Context, doc policy.Document) error {
	return b.mgr.Put(ctx, b.mgr.PolicyKey(doc.Kind), string(doc.Data))
}

func (b *etcdBackend) Versions(ctx context.Context) (map[string]int64, error) {
	kvs, _, err := b.mgr.GetPrefixed(ctx, b.mgr.GetPoliciesPrefix())
	if err != nil {
		return nil, err
	}
	versions := make(map[string]int64, len(kvs))
	for _, kv := range kvs {
		kind, ok := b.mgr.PolicyKind(string(kv.Key))
		if !ok {
			continue
		}
		doc, err := policy.Encode(kind, kv.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kv.Key, err)
		}
		versions[kind] = doc.Version
	}
	return versions, nil
}

func (b *etcdBackend) Close() error {
	return b.mgr.Close()
}
