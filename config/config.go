package config

import (
	"fmt"
	"os"
	"time"

	"github.com/xiaonanln/liveroute/util/logger"
	"github.com/xiaonanln/liveroute/util/postgres"
	"gopkg.in/yaml.v3"
)

// Policy sources
const (
	SourceEtcd     = "etcd"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// Defaults applied to omitted settings
const (
	DefaultSnapshotInterval = time.Second
	DefaultIdleTimeout      = 10 * time.Minute
	DefaultPollInterval     = 5 * time.Second
	DefaultEtcdPrefix       = "/liveroute"
)

// EtcdConfig holds etcd-specific configuration
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
	Prefix    string   `yaml:"prefix"`
}

// PolicyConfig selects where routing policies come from
type PolicyConfig struct {
	Source       string          `yaml:"source"` // etcd, postgres or file
	Etcd         EtcdConfig      `yaml:"etcd"`
	Postgres     postgres.Config `yaml:"postgres"`
	File         string          `yaml:"file"`          // bundle path for the file source; optional bootstrap otherwise
	PollInterval time.Duration   `yaml:"poll_interval"` // postgres only
}

// StatsConfig tunes the stats registry
type StatsConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	MaxEndpoints     int           `yaml:"max_endpoints"` // per service; 0 means the registry default
	MaxActive        int64         `yaml:"max_active"`    // default in-flight limit; 0 means unlimited
}

// Config is the root configuration structure
type Config struct {
	Version        int             `yaml:"version"`
	LogLevel       string          `yaml:"log_level"`
	MetricsAddr    string          `yaml:"metrics_addr"` // Optional: serves /metrics when set
	Policy         PolicyConfig    `yaml:"policy"`
	Stats          StatsConfig     `yaml:"stats"`
	AdmissionRules []AdmissionRule `yaml:"admission_rules"`
}

// LoadConfig loads configuration from a YAML file, applies defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in omitted durations and the etcd prefix
func (c *Config) ApplyDefaults() {
	if c.Stats.SnapshotInterval == 0 {
		c.Stats.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.Stats.IdleTimeout == 0 {
		c.Stats.IdleTimeout = DefaultIdleTimeout
	}
	if c.Policy.PollInterval == 0 {
		c.Policy.PollInterval = DefaultPollInterval
	}
	if c.Policy.Etcd.Prefix == "" {
		c.Policy.Etcd.Prefix = DefaultEtcdPrefix
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Policy.Source {
	case SourceEtcd:
		if len(c.Policy.Etcd.Endpoints) == 0 {
			return fmt.Errorf("at least one etcd endpoint is required")
		}
	case SourcePostgres:
		if err := c.Policy.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if c.Policy.PollInterval < 0 {
			return fmt.Errorf("policy poll_interval must not be negative")
		}
	case SourceFile:
		if c.Policy.File == "" {
			return fmt.Errorf("policy file is required for the file source")
		}
	case "":
		return fmt.Errorf("policy source is required")
	default:
		return fmt.Errorf("unsupported policy source: %s (expected etcd, postgres or file)", c.Policy.Source)
	}

	if c.Stats.SnapshotInterval < 0 {
		return fmt.Errorf("stats snapshot_interval must not be negative")
	}
	if c.Stats.IdleTimeout < 0 {
		return fmt.Errorf("stats idle_timeout must not be negative")
	}
	if c.Stats.IdleTimeout > 0 && c.Stats.IdleTimeout < c.Stats.SnapshotInterval {
		return fmt.Errorf("stats idle_timeout (%v) must not be shorter than snapshot_interval (%v)",
			c.Stats.IdleTimeout, c.Stats.SnapshotInterval)
	}
	if c.Stats.MaxEndpoints < 0 {
		return fmt.Errorf("stats max_endpoints must not be negative")
	}
	if c.Stats.MaxActive < 0 {
		return fmt.Errorf("stats max_active must not be negative")
	}

	if _, err := c.NewAdmissionLimits(); err != nil {
		return err
	}
	return nil
}

// NewAdmissionLimits compiles the admission rules with stats.max_active as the default limit
func (c *Config) NewAdmissionLimits() (*AdmissionLimits, error) {
	return NewAdmissionLimits(c.AdmissionRules, c.Stats.MaxActive)
}
