package postgres

import (
	"fmt"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Config holds PostgreSQL connection settings for the policy store
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"` // disable, require, verify-ca, verify-full
}

// DefaultConfig returns a default configuration for local development
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "liveroute",
		Password: "liveroute",
		Database: "liveroute",
		SSLMode:  "disable",
	}
}

// ConnectionString returns a lib/pq keyword/value connection string
func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Validate checks the configuration and fills in the default sslmode
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("unsupported sslmode %q", c.SSLMode)
	}
	return nil
}
