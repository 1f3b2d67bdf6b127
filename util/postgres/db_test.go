package postgres

import (
	"context"
	"testing"
)

func TestNewDB_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"missing host", &Config{Port: 5432, User: "user", Database: "db"}},
		{"invalid port", &Config{Host: "localhost", Port: -1, User: "user", Database: "db"}},
		{"missing user", &Config{Host: "localhost", Port: 5432, Database: "db"}},
		{"missing database", &Config{Host: "localhost", Port: 5432, User: "user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewDB(tt.config)
			if err == nil {
				if db != nil {
					db.Close()
				}
				t.Error("NewDB() should return error for invalid config")
			}
		})
	}
}

func TestNewDB_LazyConnect(t *testing.T) {
	// sql.Open does not dial, so an unreachable host still yields a DB
	db, err := NewDB(&Config{Host: "127.0.0.1", Port: 1, User: "u", Database: "d"})
	if err != nil {
		t.Fatalf("NewDB() failed: %v", err)
	}
	defer db.Close()
	if db.Connection() == nil {
		t.Fatal("Connection() returned nil")
	}
}

func TestDB_NilConnection(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on DB with nil connection should not error, got: %v", err)
	}
	if db.Connection() != nil {
		t.Error("Connection() should return nil when db.conn is nil")
	}
	if err := db.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail without a connection")
	}
}
