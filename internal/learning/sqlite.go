package learning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS learning (
    lang        TEXT PRIMARY KEY,
    data        BLOB NOT NULL,
    updated_ns  INTEGER NOT NULL
);
`

// SQLiteBackend stores every language as one row of a SQLite database.
// Each write is a single upsert transaction.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Read implements Backend.
func (s *SQLiteBackend) Read(lang string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM learning WHERE lang = ?`, lang).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query learning: %w", err)
	}
	return data, nil
}

// Write implements Backend.
func (s *SQLiteBackend) Write(lang string, data []byte) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO learning (lang, data, updated_ns) VALUES (?, ?, ?)
		ON CONFLICT(lang) DO UPDATE SET data = excluded.data, updated_ns = excluded.updated_ns`,
		lang, data, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert learning: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Languages lists the stored languages in order.
func (s *SQLiteBackend) Languages() ([]string, error) {
	rows, err := s.db.Query(`SELECT lang FROM learning ORDER BY lang`)
	if err != nil {
		return nil, fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
