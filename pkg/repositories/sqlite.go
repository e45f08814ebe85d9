package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cbodonnell/tsuro/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = migrate(ctx, migrations, func(ctx context.Context, query string) error {
		_, err := db.ExecContext(ctx, query)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) GetBlob(ctx context.Context, db string, key string) (*models.Blob, error) {
	q := `
	SELECT value, updated_at FROM blobs WHERE db = ? AND key = ?;
	`
	var stored []byte
	var updatedAt int64
	if err := r.db.QueryRowContext(ctx, q, db, key).Scan(&stored, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{Database: db, Key: key}
		}
		return nil, fmt.Errorf("failed to scan blob: %v", err)
	}

	value, err := decompress(stored)
	if err != nil {
		return nil, err
	}
	return &models.Blob{Database: db, Key: key, Value: value, UpdatedAt: updatedAt}, nil
}

func (r *SQLiteRepository) PutBlob(ctx context.Context, db string, key string, value []byte) error {
	q := `
	INSERT OR REPLACE INTO blobs (db, key, value, updated_at)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, db, key, compress(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert blob: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) DeleteBlob(ctx context.Context, db string, key string) error {
	q := `
	DELETE FROM blobs WHERE db = ? AND key = ?;
	`
	res, err := r.db.ExecContext(ctx, q, db, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted blobs: %v", err)
	}
	if n == 0 {
		return &ErrNotFound{Database: db, Key: key}
	}

	return nil
}
