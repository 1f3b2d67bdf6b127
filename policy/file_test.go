package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaonanln/liveroute/tag"
)

const bundleYAML = `
databases:
  id: orders
  version: 2
  groups:
    - id: g1
      databases:
        - id: m1
          addresses: ["10.0.0.1:3306"]
          unit: u1
          cell: c1
          role: MASTER
        - id: s1
          addresses: ["10.0.0.2:3306"]
          unit: u1
          cell: c2
          role: SLAVE
          accessMode: READ
rules:
  id: canary
  version: 5
  rules:
    - order: 1
      relationType: OR
      conditions:
        - key: user
          values: ["beta", "staff"]
          opType: IN
      destinations:
        - weight: 1
          conditions:
            - key: version
              values: ["v2"]
              opType: EQUAL
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_Load(t *testing.T) {
	store := NewStore()
	src := NewFileSource(writeFile(t, bundleYAML), store)
	require.NoError(t, src.Load())

	spec := store.DatabaseSpec()
	require.NotNil(t, spec)
	assert.Equal(t, int64(2), spec.Version)
	read := spec.GetReadDatabase("u1", "c2", "10.0.0.1:3306")
	require.NotNil(t, read)
	// m1 has the default READ_WRITE mode, so it stays sticky.
	assert.Equal(t, "m1", read.ID)

	rs := store.RuleSet()
	require.NotNil(t, rs)
	assert.Equal(t, int64(5), rs.Version)
	assert.True(t, rs.Rules[0].IsOr())
	assert.NotNil(t, rs.Route(tag.Tags{"user": {"staff"}}, nil))
	assert.Nil(t, rs.Route(tag.Tags{"user": {"guest"}}, nil))
}

func TestFileSource_Errors(t *testing.T) {
	store := NewStore()

	missing := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"), store)
	assert.Error(t, missing.Load())

	malformed := NewFileSource(writeFile(t, "databases: [1, 2"), store)
	assert.Error(t, malformed.Load())

	empty := NewFileSource(writeFile(t, "# nothing here\n"), store)
	assert.NoError(t, empty.Load())
	assert.Nil(t, store.DatabaseSpec())
	assert.Nil(t, store.RuleSet())
}

func TestParseBundle_PartialPublish(t *testing.T) {
	bundle, err := ParseBundle([]byte("rules:\n  id: r\n  version: 1\n"))
	require.NoError(t, err)
	assert.Nil(t, bundle.Databases)

	store := NewStore()
	require.NoError(t, bundle.Publish(store))
	assert.Nil(t, store.DatabaseSpec())
	assert.Equal(t, int64(1), store.RuleSet().Version)
}
