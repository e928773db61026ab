package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
)

// SQLiteConfig returns the configuration of a fresh SQLite database in a test directory.
func SQLiteConfig(t *testing.T, name string) driver.Config {
	return driver.Config{Engine: dialect.SQLite, File: filepath.Join(t.TempDir(), name)}
}

// OpenSQLite opens a fresh SQLite database that is closed when the test ends.
func OpenSQLite(t *testing.T) (*driver.Conn, driver.Config) {
	t.Helper()
	config := SQLiteConfig(t, "test.db")
	conn, err := driver.Open(context.Background(), config)
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, config
}
