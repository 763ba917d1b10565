// Package persistence provides snapshot storage for the game: a versioned
// JSON snapshot written atomically through a key-value Storage backed by
// SQLite, a JSON file, or memory.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection and implements Storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS save_slots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Get implements Storage.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM save_slots WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements Storage. The row is replaced inside one transaction, so a
// failed write leaves the previous snapshot intact.
func (db *DB) Set(ctx context.Context, key, value string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO save_slots (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write slot %q: %w", key, err)
	}

	return tx.Commit()
}

// Remove implements Storage.
func (db *DB) Remove(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM save_slots WHERE key = ?", key)
	return err
}

// Slot is a stored row.
type Slot struct {
	Key       string `db:"key"`
	Size      int    `db:"size"`
	UpdatedAt int64  `db:"updated_at"`
}

// Slots lists stored keys, most recently written first.
func (db *DB) Slots(ctx context.Context) ([]Slot, error) {
	var slots []Slot
	err := db.conn.SelectContext(ctx, &slots,
		"SELECT key, length(value) AS size, updated_at FROM save_slots ORDER BY updated_at DESC",
	)
	return slots, err
}
