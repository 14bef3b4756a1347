package db

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens an isolated in-memory SQLite database with all migrations
// applied. The database is closed when the test finishes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, uuid.NewString())

	database, err := Init("sqlite", dsn)
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and avoids
	// shared-cache table locks between pooled connections.
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	require.NoError(t, RunMigrations(context.Background(), database.DB, "sqlite"))

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// CountRows returns the number of rows in table. Test helper only.
func CountRows(t *testing.T, database *sqlx.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, database.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
