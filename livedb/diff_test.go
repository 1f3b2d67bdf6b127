package livedb

import "testing"

func group(id string, dbs ...*LiveDatabase) *LiveDatabaseGroup {
	return &LiveDatabaseGroup{ID: id, Databases: dbs}
}

func node(id string, role Role, mode AccessMode, addrs ...string) *LiveDatabase {
	return &LiveDatabase{ID: id, Role: role, AccessMode: mode, Addresses: addrs}
}

func TestIsChanged(t *testing.T) {
	tests := []struct {
		name     string
		oldState []*LiveDatabaseGroup
		newState []*LiveDatabaseGroup
		want     bool
	}{
		{
			name: "both empty",
			want: false,
		},
		{
			name:     "empty to one",
			newState: []*LiveDatabaseGroup{group("g1")},
			want:     true,
		},
		{
			name:     "one to empty",
			oldState: []*LiveDatabaseGroup{group("g1")},
			want:     true,
		},
		{
			name:     "identical",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "1.1.1.1"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "1.1.1.1"))},
			want:     false,
		},
		{
			name:     "address replaced",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "1.1.1.1"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "1.1.1.2"))},
			want:     true,
		},
		{
			name:     "address added",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "a", "b"))},
			want:     true,
		},
		{
			name:     "address order ignored",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "a", "b"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "b", "a"))},
			want:     false,
		},
		{
			name:     "role flipped",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, AccessReadWrite, "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleSlave, AccessReadWrite, "a"))},
			want:     true,
		},
		{
			name:     "access mode changed",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleSlave, AccessRead, "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleSlave, AccessNone, "a"))},
			want:     true,
		},
		{
			name:     "empty access mode equals read write",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleSlave, "", "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleSlave, AccessReadWrite, "a"))},
			want:     false,
		},
		{
			name:     "group count differs",
			oldState: []*LiveDatabaseGroup{group("g1")},
			newState: []*LiveDatabaseGroup{group("g1"), group("g2")},
			want:     true,
		},
		{
			name:     "group renamed",
			oldState: []*LiveDatabaseGroup{group("g1")},
			newState: []*LiveDatabaseGroup{group("g2")},
			want:     true,
		},
		{
			name:     "database count differs",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "a"), node("d2", RoleSlave, "", "b"))},
			want:     true,
		},
		{
			name:     "database replaced",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "a"))},
			newState: []*LiveDatabaseGroup{group("g1", node("d9", RoleMaster, "", "a"))},
			want:     true,
		},
		{
			name:     "group order ignored",
			oldState: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "a")), group("g2")},
			newState: []*LiveDatabaseGroup{group("g2"), group("g1", node("d1", RoleMaster, "", "a"))},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsChanged(tt.oldState, tt.newState); got != tt.want {
				t.Errorf("IsChanged() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsChanged_CachedAgainstFresh(t *testing.T) {
	oldSpec := &LiveDatabaseSpec{Groups: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "a", "b"))}}
	oldSpec.Cache()
	newSpec := &LiveDatabaseSpec{Groups: []*LiveDatabaseGroup{group("g1", node("d1", RoleMaster, "", "b", "a"))}}

	if IsChanged(oldSpec.Groups, newSpec.Groups) {
		t.Error("cached and uncached copies of the same topology should be equal")
	}
}
