package livedb

// Role is the replication role of a database.
type Role string

const (
	RoleMaster Role = "MASTER"
	RoleSlave  Role = "SLAVE"
)

// AccessMode tells whether a database may serve reads, writes, or both.
// The empty mode is treated as READ_WRITE.
type AccessMode string

const (
	AccessReadWrite AccessMode = "READ_WRITE"
	AccessRead      AccessMode = "READ"
	AccessWrite     AccessMode = "WRITE"
	AccessNone      AccessMode = "NONE"
)

// Readable reports whether reads are allowed
func (m AccessMode) Readable() bool {
	return m == AccessReadWrite || m == AccessRead || m == ""
}

// Writable reports whether writes are allowed
func (m AccessMode) Writable() bool {
	return m == AccessReadWrite || m == AccessWrite || m == ""
}

func (m AccessMode) normalized() AccessMode {
	if m == "" {
		return AccessReadWrite
	}
	return m
}

// LiveDatabase is one replica of a database group.
type LiveDatabase struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Addresses  []string   `json:"addresses" yaml:"addresses"`
	Unit       string     `json:"unit" yaml:"unit"`
	Cell       string     `json:"cell" yaml:"cell"`
	Role       Role       `json:"role" yaml:"role"`
	AccessMode AccessMode `json:"accessMode" yaml:"accessMode"`

	// GroupID refers to the owning group; it is filled in by LiveDatabaseSpec.Cache.
	GroupID string `json:"-" yaml:"-"`

	addressSet map[string]struct{}
}

// IsMaster reports whether the database is the group master
func (d *LiveDatabase) IsMaster() bool {
	return d != nil && d.Role == RoleMaster
}

// IsReadable reports whether the database serves reads
func (d *LiveDatabase) IsReadable() bool {
	return d != nil && d.AccessMode.Readable()
}

// IsWritable reports whether the database serves writes
func (d *LiveDatabase) IsWritable() bool {
	return d != nil && d.AccessMode.Writable()
}

// IsLocal reports whether the database lives in the given unit and cell
func (d *LiveDatabase) IsLocal(unit, cell string) bool {
	return d.Unit == unit && d.Cell == cell
}

// HasAddress reports whether address is one of the database node addresses
func (d *LiveDatabase) HasAddress(address string) bool {
	if d.addressSet != nil {
		_, ok := d.addressSet[address]
		return ok
	}
	for _, a := range d.Addresses {
		if a == address {
			return true
		}
	}
	return false
}

// AddressSet returns the node addresses as a set
func (d *LiveDatabase) AddressSet() map[string]struct{} {
	if d.addressSet != nil {
		return d.addressSet
	}
	return toSet(d.Addresses)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

const (
	basePriority   = 100
	localPriority  = 10
	masterPriority = 1
)

// readPriority scores a readable database for a reader located in unit/cell.
func (d *LiveDatabase) readPriority(unit, cell string) int {
	priority := basePriority
	if d.IsLocal(unit, cell) {
		priority += localPriority
	}
	if d.IsMaster() {
		priority += masterPriority
	}
	return priority
}
