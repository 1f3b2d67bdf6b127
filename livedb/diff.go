package livedb

// IsChanged reports whether two topologies differ in any way that affects routing:
// group membership, database membership, node addresses, roles or access modes.
func IsChanged(oldGroups, newGroups []*LiveDatabaseGroup) bool {
	if (len(oldGroups) == 0) != (len(newGroups) == 0) {
		return true
	}
	if len(oldGroups) != len(newGroups) {
		return true
	}
	newByID := make(map[string]*LiveDatabaseGroup, len(newGroups))
	for _, g := range newGroups {
		if g != nil {
			newByID[g.ID] = g
		}
	}
	for _, og := range oldGroups {
		if og == nil {
			continue
		}
		ng, ok := newByID[og.ID]
		if !ok {
			return true
		}
		if isGroupChanged(og, ng) {
			return true
		}
	}
	return false
}

func isGroupChanged(oldGroup, newGroup *LiveDatabaseGroup) bool {
	if len(oldGroup.Databases) != len(newGroup.Databases) {
		return true
	}
	newByID := make(map[string]*LiveDatabase, len(newGroup.Databases))
	for _, db := range newGroup.Databases {
		if db != nil {
			newByID[db.ID] = db
		}
	}
	for _, odb := range oldGroup.Databases {
		if odb == nil {
			continue
		}
		ndb, ok := newByID[odb.ID]
		if !ok {
			return true
		}
		if isDatabaseChanged(odb, ndb) {
			return true
		}
	}
	return false
}

func isDatabaseChanged(oldDB, newDB *LiveDatabase) bool {
	if oldDB.Role != newDB.Role {
		return true
	}
	if oldDB.AccessMode.normalized() != newDB.AccessMode.normalized() {
		return true
	}
	oldSet, newSet := oldDB.AddressSet(), newDB.AddressSet()
	if len(oldSet) != len(newSet) {
		return true
	}
	for addr := range oldSet {
		if _, ok := newSet[addr]; !ok {
			return true
		}
	}
	return false
}
