package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/xiaonanln/liveroute/util/postgres"
)

var invalidDBNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeDBName converts a test name to a valid PostgreSQL database name:
// at most 63 chars, starting with a letter or underscore, only letters, digits and underscores.
func sanitizeDBName(testName string) string {
	name := invalidDBNameChars.ReplaceAllString(testName, "_")
	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	name = strings.ToLower(name)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func adminConfig() *postgres.Config {
	return &postgres.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "postgres",
		SSLMode:  "disable",
	}
}

// CreateTestDatabase creates a fresh database named after t.Name() with the policy
// schema installed and returns a connection to it. The database is dropped when the
// test completes. If PostgreSQL is not available, the test is skipped.
func CreateTestDatabase(t *testing.T) *postgres.DB {
	t.Helper()

	ctx := context.Background()
	dbName := sanitizeDBName(t.Name())

	adminDB, err := postgres.NewDB(adminConfig())
	if err != nil {
		t.Skipf("Skipping test - PostgreSQL not available: %v", err)
		return nil
	}
	if err := adminDB.Ping(ctx); err != nil {
		adminDB.Close()
		t.Skipf("Skipping test - PostgreSQL not available: %v", err)
		return nil
	}

	_, _ = adminDB.Connection().ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
	_, err = adminDB.Connection().ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	adminDB.Close()
	if err != nil {
		t.Skipf("Failed to create test database: %v", err)
		return nil
	}

	testConfig := adminConfig()
	testConfig.Database = dbName
	db, err := postgres.NewDB(testConfig)
	if err != nil {
		t.Skipf("Skipping test - Failed to connect to test database: %v", err)
		return nil
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()

		cleanupDB, err := postgres.NewDB(adminConfig())
		if err != nil {
			t.Logf("Warning: Failed to connect for cleanup: %v", err)
			return
		}
		defer cleanupDB.Close()

		_, err = cleanupDB.Connection().ExecContext(context.Background(),
			fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
		if err != nil {
			t.Logf("Warning: Failed to drop test database: %v", err)
		}
	})

	return db
}
