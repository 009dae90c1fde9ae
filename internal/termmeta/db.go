// Package termmeta provides a SQLite-backed term meta store.
package termmeta

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/resolate/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS term_meta (
	term_id    INTEGER NOT NULL,
	meta_key   TEXT    NOT NULL,
	meta_value BLOB    NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (term_id, meta_key)
);

CREATE INDEX IF NOT EXISTS idx_term_meta_key ON term_meta(meta_key);
`

// Verify *DB satisfies storage.Provider at compile time.
var _ storage.Provider = (*DB)(nil)

// DB wraps a sql.DB with term meta operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("termmeta: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("termmeta: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("termmeta: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
