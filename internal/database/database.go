// Package database owns the sqlite file holding backend configurations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	connectionSetupTimeout   = 30 * time.Second
	defaultBusyTimeoutMillis = 5000
)

// DB wraps the sqlite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// dsn carries the connection pragmas so every pooled connection gets them.
func dsn(databasePath string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", strconv.Itoa(defaultBusyTimeoutMillis))
	return "file:" + databasePath + "?" + params.Encode()
}

// Open creates the database directory if needed, opens the sqlite file and
// applies pending migrations.
func Open(ctx context.Context, databasePath string) (*DB, error) {
	log.Info().Msgf("Initializing database at: %s", databasePath)

	dir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite3", dsn(databasePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)

	setupCtx, cancel := context.WithTimeout(ctx, connectionSetupTimeout)
	defer cancel()
	if err := conn.PingContext(setupCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	db := &DB{conn: conn, path: databasePath}
	if err := db.migrate(setupCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msgf("Database initialized successfully at: %s", databasePath)
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		log.Debug().Msg("No pending migrations")
		return nil
	}
	for _, r := range results {
		log.Debug().Str("migration", r.Source.Path).Dur("took", r.Duration).Msg("migration applied")
	}
	return nil
}

// Version returns the current schema version.
func (db *DB) Version(ctx context.Context) (int64, error) {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, migrations)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// Conn exposes the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.conn.Close()
}
