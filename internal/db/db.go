package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const pingTimeout = 10 * time.Second

// Init opens and pings a database. driver is "sqlite" (modernc) or "pgx".
func Init(driver, connection string) (*sqlx.DB, error) {
	if driver == "sqlite" && !isMemory(connection) {
		err := os.MkdirAll(filepath.Dir(sqlitePath(connection)), 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, driver)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "driver", driver)
	return db, nil
}

// configurePool sizes the pool per driver. SQLite serializes writers, so a
// small pool avoids SQLITE_BUSY churn under concurrent submissions.
func configurePool(db *sqlx.DB, driver string) {
	switch driver {
	case "sqlite":
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
}

func isMemory(connection string) bool {
	return strings.HasPrefix(connection, ":memory:") || strings.Contains(connection, "mode=memory")
}

// sqlitePath strips the "file:" prefix and query string from a SQLite DSN.
func sqlitePath(connection string) string {
	path, _, _ := strings.Cut(strings.TrimPrefix(connection, "file:"), "?")
	return path
}
