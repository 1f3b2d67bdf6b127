package livedb

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Supervisor resolves databases for shard addresses.
type Supervisor interface {
	GetDatabase(address string) *LiveDatabase
	GetDatabaseByShards(shards ...string) *LiveDatabase
	GetWriteDatabase(shards ...string) *LiveDatabase
	GetReadDatabase(unit, cell string, shards ...string) *LiveDatabase
}

var _ Supervisor = (*LiveDatabaseSpec)(nil)

// LiveDatabaseSpec is one published version of the database topology.
// It is immutable once cached; a new version replaces it wholesale.
type LiveDatabaseSpec struct {
	ID      string               `json:"id" yaml:"id"`
	Version int64                `json:"version" yaml:"version"`
	Groups  []*LiveDatabaseGroup `json:"groups" yaml:"groups"`

	once   sync.Once
	cached atomic.Bool
	nodes  map[string]*LiveDatabase
	groups map[string]*LiveDatabaseGroup
}

// Decode parses a JSON database topology pushed by the control plane.
func Decode(data []byte) (*LiveDatabaseSpec, error) {
	var spec LiveDatabaseSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal database spec: %w", err)
	}
	return &spec, nil
}

// Cache links every database to its group and builds the address index.
// It runs once; later calls are no-ops. Lookups call it on demand, so a spec is
// always fully indexed before it answers.
func (s *LiveDatabaseSpec) Cache() {
	s.once.Do(s.build)
}

// IsCached reports whether the indexes are built.
func (s *LiveDatabaseSpec) IsCached() bool {
	return s.cached.Load()
}

func (s *LiveDatabaseSpec) build() {
	nodes := make(map[string]*LiveDatabase)
	groups := make(map[string]*LiveDatabaseGroup, len(s.Groups))
	for _, g := range s.Groups {
		if g == nil {
			continue
		}
		groups[g.ID] = g
		for _, db := range g.Databases {
			if db == nil {
				continue
			}
			db.GroupID = g.ID
			db.addressSet = toSet(db.Addresses)
			for _, addr := range db.Addresses {
				if _, exists := nodes[addr]; !exists {
					nodes[addr] = db
				}
			}
		}
	}
	s.groups = groups
	s.nodes = nodes
	s.cached.Store(true)
}

// Group returns the group with the given id.
func (s *LiveDatabaseSpec) Group(id string) *LiveDatabaseGroup {
	if s == nil {
		return nil
	}
	s.Cache()
	return s.groups[id]
}

// GetDatabase returns the database serving address.
func (s *LiveDatabaseSpec) GetDatabase(address string) *LiveDatabase {
	if s == nil {
		return nil
	}
	s.Cache()
	return s.nodes[address]
}

// GetDatabaseByShards returns the database of the first shard address that resolves.
func (s *LiveDatabaseSpec) GetDatabaseByShards(shards ...string) *LiveDatabase {
	for _, shard := range shards {
		if db := s.GetDatabase(shard); db != nil {
			return db
		}
	}
	return nil
}

// GetWriteDatabase resolves the shards and returns the master of their group.
func (s *LiveDatabaseSpec) GetWriteDatabase(shards ...string) *LiveDatabase {
	db := s.GetDatabaseByShards(shards...)
	if db == nil {
		return nil
	}
	g := s.Group(db.GroupID)
	if g == nil {
		return nil
	}
	return g.GetWriteDatabase(db)
}

// GetReadDatabase resolves the shards and picks a read replica for unit/cell.
func (s *LiveDatabaseSpec) GetReadDatabase(unit, cell string, shards ...string) *LiveDatabase {
	db := s.GetDatabaseByShards(shards...)
	if db == nil {
		return nil
	}
	g := s.Group(db.GroupID)
	if g == nil {
		return nil
	}
	return g.GetReadDatabase(db, unit, cell)
}
