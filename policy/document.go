package policy

import (
	"encoding/json"
	"fmt"

	"github.com/xiaonanln/liveroute/livedb"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/errors"
	"github.com/xiaonanln/liveroute/util/metrics"
	"gopkg.in/yaml.v3"
)

// Document is a serialized policy as it travels through etcd and postgres.
// Data is the JSON encoding of a livedb.LiveDatabaseSpec or a tag.RuleSet.
type Document struct {
	Kind    string
	ID      string
	Version int64
	Data    []byte
}

// Apply decodes doc and publishes it to store. A payload without a version takes
// the document version.
func Apply(store *Store, doc Document) (bool, error) {
	switch doc.Kind {
	case KindDatabases:
		spec, err := livedb.Decode(doc.Data)
		if err != nil {
			metrics.RecordPolicyUpdate(doc.Kind, metrics.ResultError)
			return false, errors.NewPolicyError(doc.Kind, doc.ID, doc.Version, err)
		}
		if spec.Version == 0 {
			spec.Version = doc.Version
		}
		if spec.ID == "" {
			spec.ID = doc.ID
		}
		return store.PublishDatabaseSpec(spec)
	case KindRules:
		rs, err := tag.Decode(doc.Data)
		if err != nil {
			metrics.RecordPolicyUpdate(doc.Kind, metrics.ResultError)
			return false, errors.NewPolicyError(doc.Kind, doc.ID, doc.Version, err)
		}
		if rs.Version == 0 {
			rs.Version = doc.Version
		}
		if rs.ID == "" {
			rs.ID = doc.ID
		}
		return store.PublishRuleSet(rs)
	default:
		return false, errors.NewPolicyError(doc.Kind, doc.ID, doc.Version, fmt.Errorf("unknown policy kind"))
	}
}

// Encode parses a YAML or JSON policy of the given kind and returns it as a Document
// with a canonical JSON payload.
func Encode(kind string, data []byte) (Document, error) {
	var (
		payload any
		id      string
		version int64
	)
	switch kind {
	case KindDatabases:
		var spec livedb.LiveDatabaseSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return Document{}, errors.NewPolicyError(kind, "", 0, fmt.Errorf("failed to parse: %w", err))
		}
		payload, id, version = &spec, spec.ID, spec.Version
	case KindRules:
		var rs tag.RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return Document{}, errors.NewPolicyError(kind, "", 0, fmt.Errorf("failed to parse: %w", err))
		}
		payload, id, version = &rs, rs.ID, rs.Version
	default:
		return Document{}, errors.NewPolicyError(kind, "", 0, fmt.Errorf("unknown policy kind"))
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return Document{}, errors.NewPolicyError(kind, id, version, fmt.Errorf("failed to marshal: %w", err))
	}
	return Document{Kind: kind, ID: id, Version: version, Data: encoded}, nil
}
