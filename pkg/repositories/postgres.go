package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	// pgx.Conn is not safe for concurrent use.
	lock sync.Mutex
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and runs the migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	err = migrate(ctx, migrations, func(ctx context.Context, query string) error {
		_, err := conn.Exec(ctx, query)
		return err
	})
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) GetBlob(ctx context.Context, db string, key string) (*models.Blob, error) {
	q := `
	SELECT value, updated_at FROM blobs WHERE db = $1 AND key = $2;
	`
	var stored []byte
	var updatedAt int64
	r.lock.Lock()
	err := r.conn.QueryRow(ctx, q, db, key).Scan(&stored, &updatedAt)
	r.lock.Unlock()
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresRepository) PutBlob(ctx context.Context, db string, key string, value []byte) error {
	q := `
	INSERT INTO blobs (db, key, value, updated_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (db, key) DO UPDATE SET value = $3, updated_at = $4;
	`
	r.lock.Lock()
	defer r.lock.Unlock()
	_, err := r.conn.Exec(ctx, q, db, key, compress(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert blob: %v", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteBlob(ctx context.Context, db string, key string) error {
	q := `
	DELETE FROM blobs WHERE db = $1 AND key = $2;
	`
	r.lock.Lock()
	defer r.lock.Unlock()
	tag, err := r.conn.Exec(ctx, q, db, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Database: db, Key: key}
	}

	return nil
}
