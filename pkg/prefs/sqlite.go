package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type SQLiteStore struct {
	db     *sql.DB
	prefix string
}

func NewSQLiteStore(ctx context.Context, path string, prefix string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences table: %v", err)
	}

	return &SQLiteStore{
		db:     db,
		prefix: prefix,
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	q := `SELECT value FROM preferences WHERE key = ?;`
	var value string
	if err := s.db.QueryRowContext(ctx, q, namespaced(s.prefix, key)).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to scan preference: %v", err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %v", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %v", key, err)
	}
	q := `INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?);`
	if _, err := s.db.ExecContext(ctx, q, namespaced(s.prefix, key), string(b)); err != nil {
		return fmt.Errorf("failed to store preference: %v", err)
	}
	return nil
}
