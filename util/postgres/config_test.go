package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 5432, config.Port)
	assert.Equal(t, "liveroute", config.User)
	assert.Equal(t, "liveroute", config.Database)
	assert.Equal(t, "disable", config.SSLMode)
	assert.NoError(t, config.Validate())
}

func TestConfig_ConnectionString(t *testing.T) {
	config := &Config{
		Host:     "testhost",
		Port:     5433,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "require",
	}

	expected := "host=testhost port=5433 user=testuser password=testpass dbname=testdb sslmode=require"
	assert.Equal(t, expected, config.ConnectionString())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: &Config{Host: "localhost", Port: 5432, User: "user", Password: "pass", Database: "db", SSLMode: "verify-full"},
		},
		{
			name:    "missing host",
			config:  &Config{Port: 5432, User: "user", Database: "db"},
			wantErr: true,
		},
		{
			name:    "zero port",
			config:  &Config{Host: "localhost", User: "user", Database: "db"},
			wantErr: true,
		},
		{
			name:    "port out of range",
			config:  &Config{Host: "localhost", Port: 70000, User: "user", Database: "db"},
			wantErr: true,
		},
		{
			name:    "missing user",
			config:  &Config{Host: "localhost", Port: 5432, Database: "db"},
			wantErr: true,
		},
		{
			name:    "missing database",
			config:  &Config{Host: "localhost", Port: 5432, User: "user"},
			wantErr: true,
		},
		{
			name:    "unknown sslmode",
			config:  &Config{Host: "localhost", Port: 5432, User: "user", Database: "db", SSLMode: "prefer-maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDefaultsSSLMode(t *testing.T) {
	config := &Config{Host: "localhost", Port: 5432, User: "user", Database: "db"}
	assert.NoError(t, config.Validate())
	assert.Equal(t, "disable", config.SSLMode)
}
