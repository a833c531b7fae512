package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// SQLiteBackend persists collections in a single SQLite table.
type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

// SQLiteOpener returns an Opener for the database file at path.
// An empty path means no durable backend is available.
func SQLiteOpener(path string) Opener {
	return func(ctx context.Context) (Backend, error) {
		if path == "" {
			return nil, errors.New("no durable store path configured")
		}
		return NewSQLiteBackend(ctx, path)
	}
}

// NewSQLiteBackend opens (and migrates) the database at dbPath.
func NewSQLiteBackend(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	var version int
	if err := b.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (collection, key)
	);
	`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Put upserts records in one transaction. The rowid of an existing key is kept,
// so All keeps first-insertion order.
func (b *SQLiteBackend) Put(ctx context.Context, coll Collection, records []Record) error {
	if !coll.Valid() {
		return invalidCollection(coll)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, key, value) VALUES (?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, string(coll), r.Key, r.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Get(ctx context.Context, coll Collection, key string) ([]byte, error) {
	if !coll.Valid() {
		return nil, invalidCollection(coll)
	}
	var value []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM records WHERE collection = ? AND key = ?",
		string(coll), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, notFound(coll, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *SQLiteBackend) All(ctx context.Context, coll Collection) ([]Record, error) {
	if !coll.Valid() {
		return nil, invalidCollection(coll)
	}
	rows, err := b.db.QueryContext(ctx,
		"SELECT key, value FROM records WHERE collection = ? ORDER BY rowid ASC",
		string(coll),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
