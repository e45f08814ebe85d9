package repositories

import (
	"context"

	"github.com/cbodonnell/tsuro/pkg/repositories/models"
)

// Repository stores JSON documents addressed by database and key.
// Implementations compress values at rest.
type Repository interface {
	Close(ctx context.Context) error
	GetBlob(ctx context.Context, db string, key string) (*models.Blob, error)
	PutBlob(ctx context.Context, db string, key string, value []byte) error
	DeleteBlob(ctx context.Context, db string, key string) error
}
