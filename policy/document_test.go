package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/errors"
)

func TestApply(t *testing.T) {
	store := NewStore()

	ok, err := Apply(store, Document{Kind: KindDatabases, Data: []byte(databasesJSON)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), store.DatabaseSpec().Version)

	ok, err = Apply(store, Document{Kind: KindRules, Data: []byte(rulesJSON)})
	require.NoError(t, err)
	assert.True(t, ok)

	dest := store.RuleSet().Route(tag.Tags{"user": {"beta"}}, nil)
	require.NotNil(t, dest)
	assert.Equal(t, "v2", dest.Conditions[0].Values[0])
}

func TestApply_DocumentVersionFillsPayload(t *testing.T) {
	store := NewStore()
	ok, err := Apply(store, Document{Kind: KindRules, ID: "r", Version: 12, Data: []byte(`{"rules": []}`)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(12), store.RuleSet().Version)
	assert.Equal(t, "r", store.RuleSet().ID)
}

func TestApply_Errors(t *testing.T) {
	store := NewStore()

	tests := []struct {
		name string
		doc  Document
	}{
		{"malformed databases", Document{Kind: KindDatabases, Version: 1, Data: []byte(`{"groups": "x"}`)}},
		{"malformed rules", Document{Kind: KindRules, Data: []byte(`not json`)}},
		{"unknown kind", Document{Kind: "routes", Data: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Apply(store, tt.doc)
			assert.False(t, ok)
			require.Error(t, err)
			assert.True(t, errors.IsPolicyError(err))
		})
	}
	assert.Nil(t, store.DatabaseSpec())
	assert.Nil(t, store.RuleSet())
}

func TestEncode_YAML(t *testing.T) {
	data := []byte(`
id: canary
version: 3
rules:
  - order: 2
    conditions:
      - key: region
        values: [eu]
        opType: EQUAL
    destinations:
      - weight: 1
        conditions:
          - key: zone
            values: [eu-1]
            opType: IN
`)
	doc, err := Encode(KindRules, data)
	require.NoError(t, err)
	assert.Equal(t, KindRules, doc.Kind)
	assert.Equal(t, "canary", doc.ID)
	assert.Equal(t, int64(3), doc.Version)

	// The JSON payload is what the stores hold; it must decode back.
	rs, err := tag.Decode(doc.Data)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, 2, rs.Rules[0].Order)
	require.Len(t, rs.Rules[0].Destinations, 1)
	assert.Equal(t, tag.OpIn, rs.Rules[0].Destinations[0].Conditions[0].OpType)
}

func TestEncode_DatabasesFromJSON(t *testing.T) {
	doc, err := Encode(KindDatabases, []byte(databasesJSON))
	require.NoError(t, err)
	assert.Equal(t, "orders", doc.ID)
	assert.Equal(t, int64(4), doc.Version)

	store := NewStore()
	ok, err := Apply(store, doc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "m1", store.DatabaseSpec().GetWriteDatabase("10.0.0.2:3306").ID)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode("unknown", []byte(`{}`))
	assert.True(t, errors.IsPolicyError(err))

	_, err = Encode(KindRules, []byte("rules: [unterminated"))
	assert.True(t, errors.IsPolicyError(err))
}
