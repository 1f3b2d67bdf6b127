package livedb

// LiveDatabaseGroup is a replicated database: one master and its replicas.
type LiveDatabaseGroup struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Type        string          `json:"type" yaml:"type"`
	Description string          `json:"description" yaml:"description"`
	Databases   []*LiveDatabase `json:"databases" yaml:"databases"`
}

// GetWriteDatabase returns database when it is already the master, otherwise the
// first master of the group, or nil when no master is elected.
func (g *LiveDatabaseGroup) GetWriteDatabase(database *LiveDatabase) *LiveDatabase {
	if database.IsMaster() {
		return database
	}
	for _, db := range g.Databases {
		if db.IsMaster() {
			return db
		}
	}
	return nil
}

// GetReadDatabase returns database when it is already readable. Otherwise it scores
// every readable database (local placement first, then the master role) and returns
// the first one with the highest score, or nil when nothing is readable.
func (g *LiveDatabaseGroup) GetReadDatabase(database *LiveDatabase, unit, cell string) *LiveDatabase {
	if database.IsReadable() {
		return database
	}
	var best *LiveDatabase
	bestPriority := -1
	for _, db := range g.Databases {
		if !db.IsReadable() {
			continue
		}
		if p := db.readPriority(unit, cell); p > bestPriority {
			best = db
			bestPriority = p
		}
	}
	return best
}

// Master returns the first master of the group or nil.
func (g *LiveDatabaseGroup) Master() *LiveDatabase {
	return g.GetWriteDatabase(nil)
}
