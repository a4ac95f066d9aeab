// Package catalog keeps a SQLite summary of every stored map so that maps
// can be listed and searched without parsing their documents.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mapforge/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS maps (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	layers      INTEGER NOT NULL DEFAULT 0,
	points      INTEGER NOT NULL DEFAULT 0,
	paths       INTEGER NOT NULL DEFAULT 0,
	locations   INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_maps_name ON maps(name);
`

// Catalog defines the map catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Catalog interface {
	Upsert(ctx context.Context, s models.MapSummary) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.MapSummary, error)
	List(ctx context.Context, query string, limit, offset int) ([]models.MapSummary, int, error)
	AllChecksums(ctx context.Context) (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
