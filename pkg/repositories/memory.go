package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/cbodonnell/tsuro/pkg/repositories/models"
)

type blobKey struct {
	db  string
	key string
}

type storedBlob struct {
	value     []byte
	updatedAt int64
}

// MemoryRepository keeps blobs in process. Nothing survives a restart.
type MemoryRepository struct {
	lock  sync.RWMutex
	blobs map[blobKey]storedBlob
}

func NewMemoryRepository() Repository {
	return &MemoryRepository{
		blobs: make(map[blobKey]storedBlob),
	}
}

func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) GetBlob(ctx context.Context, db string, key string) (*models.Blob, error) {
	r.lock.RLock()
	stored, ok := r.blobs[blobKey{db, key}]
	r.lock.RUnlock()
	if !ok {
		return nil, &ErrNotFound{Database: db, Key: key}
	}
	value, err := decompress(stored.value)
	if err != nil {
		return nil, err
	}
	return &models.Blob{Database: db, Key: key, Value: value, UpdatedAt: stored.updatedAt}, nil
}

func (r *MemoryRepository) PutBlob(ctx context.Context, db string, key string, value []byte) error {
	compressed := compress(value)
	r.lock.Lock()
	defer r.lock.Unlock()
	r.blobs[blobKey{db, key}] = storedBlob{value: compressed, updatedAt: time.Now().UnixMilli()}
	return nil
}

func (r *MemoryRepository) DeleteBlob(ctx context.Context, db string, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := blobKey{db, key}
	if _, ok := r.blobs[k]; !ok {
		return &ErrNotFound{Database: db, Key: key}
	}
	delete(r.blobs, k)
	return nil
}
