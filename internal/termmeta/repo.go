package termmeta

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get returns the stored value, or nil when absent.
func (db *DB) Get(termID int64, key string) ([]byte, error) {
	var v []byte
	err := db.conn.QueryRow(`SELECT meta_value FROM term_meta WHERE term_id = ? AND meta_key = ?`, termID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("termmeta: get %d/%s: %w", termID, key, err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

// Set inserts or replaces a meta value.
func (db *DB) Set(termID int64, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.conn.Exec(`
		INSERT INTO term_meta (term_id, meta_key, meta_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term_id, meta_key) DO UPDATE SET
			meta_value = excluded.meta_value,
			updated_at = excluded.updated_at
	`, termID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("termmeta: set %d/%s: %w", termID, key, err)
	}
	return nil
}

// Delete removes a meta value. Absent keys are ignored.
func (db *DB) Delete(termID int64, key string) error {
	if _, err := db.conn.Exec(`DELETE FROM term_meta WHERE term_id = ? AND meta_key = ?`, termID, key); err != nil {
		return fmt.Errorf("termmeta: delete %d/%s: %w", termID, key, err)
	}
	return nil
}

// Find returns every term holding key.
func (db *DB) Find(key string) (map[int64][]byte, error) {
	rows, err := db.conn.Query(`SELECT term_id, meta_value FROM term_meta WHERE meta_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("termmeta: find %s: %w", key, err)
	}
	defer rows.Close()
	out := make(map[int64][]byte)
	for rows.Next() {
		var (
			id int64
			v  []byte
		)
		if err := rows.Scan(&id, &v); err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, rows.Err()
}
