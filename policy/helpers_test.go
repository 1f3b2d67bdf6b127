package policy

import (
	"github.com/xiaonanln/liveroute/livedb"
	"github.com/xiaonanln/liveroute/tag"
)

func newDatabaseSpec(version int64, masterAddr string) *livedb.LiveDatabaseSpec {
	return &livedb.LiveDatabaseSpec{
		ID:      "orders",
		Version: version,
		Groups: []*livedb.LiveDatabaseGroup{{
			ID: "g1",
			Databases: []*livedb.LiveDatabase{
				{ID: "m1", Addresses: []string{masterAddr}, Role: livedb.RoleMaster, AccessMode: livedb.AccessReadWrite},
				{ID: "s1", Addresses: []string{"10.0.0.2:3306"}, Role: livedb.RoleSlave, AccessMode: livedb.AccessRead},
			},
		}},
	}
}

func newRuleSet(version int64) *tag.RuleSet {
	return &tag.RuleSet{
		ID:      "canary",
		Version: version,
		Rules: []*tag.TagRule{{
			TagGroup: tag.TagGroup{
				Conditions: []tag.TagCondition{{Key: "user", Values: []string{"beta"}, OpType: tag.OpEqual}},
			},
			Destinations: []*tag.TagDestination{{
				TagGroup: tag.TagGroup{
					Conditions: []tag.TagCondition{{Key: "version", Values: []string{"v2"}, OpType: tag.OpEqual}},
				},
				Weight: 100,
			}},
		}},
	}
}

const databasesJSON = `{
  "id": "orders",
  "version": 4,
  "groups": [{
    "id": "g1",
    "databases": [
      {"id": "m1", "addresses": ["10.0.0.1:3306"], "role": "MASTER", "accessMode": "READ_WRITE"},
      {"id": "s1", "addresses": ["10.0.0.2:3306"], "role": "SLAVE", "accessMode": "READ"}
    ]
  }]
}`

const rulesJSON = `{
  "id": "canary",
  "version": 9,
  "rules": [{
    "conditions": [{"key": "user", "values": ["beta"], "opType": "EQUAL"}],
    "order": 1,
    "destinations": [{
      "conditions": [{"key": "version", "values": ["v2"], "opType": "EQUAL"}],
      "weight": 100
    }]
  }]
}`
