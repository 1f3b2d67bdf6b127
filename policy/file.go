package policy

import (
	"fmt"
	"os"

	"github.com/xiaonanln/liveroute/livedb"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/logger"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Bundle is a policy file holding both kinds. Either may be omitted.
//
//	databases:
//	  id: orders
//	  version: 3
//	  groups: [...]
//	rules:
//	  id: canary
//	  version: 7
//	  rules: [...]
type Bundle struct {
	Databases *livedb.LiveDatabaseSpec `yaml:"databases"`
	Rules     *tag.RuleSet             `yaml:"rules"`
}

// ParseBundle parses a YAML (or JSON) policy bundle.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse policy bundle: %w", err)
	}
	return &b, nil
}

// Publish publishes every policy the bundle carries and returns the combined errors.
func (b *Bundle) Publish(store *Store) error {
	var err error
	if b.Databases != nil {
		_, e := store.PublishDatabaseSpec(b.Databases)
		err = multierr.Append(err, e)
	}
	if b.Rules != nil {
		_, e := store.PublishRuleSet(b.Rules)
		err = multierr.Append(err, e)
	}
	return err
}

// FileSource loads a policy bundle from disk once.
type FileSource struct {
	path   string
	store  *Store
	logger *logger.Logger
}

// NewFileSource creates a source reading the bundle at path.
func NewFileSource(path string, store *Store) *FileSource {
	return &FileSource{
		path:   path,
		store:  store,
		logger: logger.NewLogger("FileSource"),
	}
}

// Load reads the bundle and publishes it.
func (s *FileSource) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", s.path, err)
	}
	bundle, err := ParseBundle(data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if bundle.Databases == nil && bundle.Rules == nil {
		s.logger.Warnf("Policy file %s contains no policies", s.path)
		return nil
	}
	s.logger.Infof("Loading policies from %s", s.path)
	return bundle.Publish(s.store)
}
