// Package storage is the server side of the shared key-value store. It keeps
// JSON documents in a repository, applies the collection operations and
// reports every change so it can be pushed to subscribers.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/repositories"
	"github.com/google/uuid"
)

// ChangeHandler receives one notification per successful write
type ChangeHandler func(database string, e *messages.Event)

// Service serializes writes per key so read-modify-write collection
// operations do not interleave.
type Service struct {
	repository repositories.Repository
	onChange   ChangeHandler
	newID      func() string
	logger     *log.Logger

	locksLock sync.Mutex
	locks     map[string]*sync.Mutex
}

type NewServiceOptions struct {
	Repository repositories.Repository
	OnChange   ChangeHandler
	Logger     *log.Logger
}

func NewService(opts NewServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func(string, *messages.Event) {}
	}
	return &Service{
		repository: opts.Repository,
		onChange:   onChange,
		newID:      uuid.NewString,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(db, key string) func() {
	s.locksLock.Lock()
	l, ok := s.locks[db+"/"+key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[db+"/"+key] = l
	}
	s.locksLock.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) stored(ctx context.Context, db, key string) (json.RawMessage, error) {
	blob, err := s.repository.GetBlob(ctx, db, key)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s/%s: %v", db, key, err)
	}
	return blob.Value, nil
}

// Get returns the value under key. Collections are paged with firstResult
// and maxResults; a negative maxResults returns every remaining item.
func (s *Service) Get(ctx context.Context, db, key string, firstResult, maxResults int) (json.RawMessage, error) {
	blob, err := s.repository.GetBlob(ctx, db, key)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, &blobstore.ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("failed to get %s/%s: %v", db, key, err)
	}
	value := bytes.TrimSpace(blob.Value)
	if len(value) == 0 || value[0] != '[' || (firstResult <= 0 && maxResults < 0) {
		return value, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s/%s: %v", db, key, err)
	}
	return page(items, firstResult, maxResults)
}

func page(items []json.RawMessage, firstResult, maxResults int) (json.RawMessage, error) {
	if firstResult < 0 {
		firstResult = 0
	}
	if firstResult > len(items) {
		firstResult = len(items)
	}
	end := len(items)
	if maxResults >= 0 && firstResult+maxResults < end {
		end = firstResult + maxResults
	}
	b, err := json.Marshal(items[firstResult:end])
	if err != nil {
		return nil, fmt.Errorf("failed to encode page: %v", err)
	}
	return b, nil
}

// Set replaces the value under key
func (s *Service) Set(ctx context.Context, db, key, sessionID string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &InvalidValueError{Key: key}
	}
	defer s.lock(db, key)()

	if err := s.repository.PutBlob(ctx, db, key, value); err != nil {
		return fmt.Errorf("failed to put %s/%s: %v", db, key, err)
	}
	s.notify(db, messages.EventUpdated, sessionID, key, value)
	return nil
}

// Add appends items to the collection under key and returns them with their ids
func (s *Service) Add(ctx context.Context, db, key, sessionID string, value json.RawMessage) ([]json.RawMessage, error) {
	if !json.Valid(value) {
		return nil, &InvalidValueError{Key: key}
	}
	defer s.lock(db, key)()

	stored, err := s.stored(ctx, db, key)
	if err != nil {
		return nil, err
	}
	updated, added, err := blobstore.AddItems(stored, value, s.newID)
	if err != nil {
		return nil, &InvalidValueError{Key: key, Err: err}
	}
	if err := s.repository.PutBlob(ctx, db, key, updated); err != nil {
		return nil, fmt.Errorf("failed to put %s/%s: %v", db, key, err)
	}
	s.notify(db, messages.EventAdded, sessionID, key, updated)
	return added, nil
}

// Update replaces the collection item sharing value's id, or the whole value
// when key does not hold a collection.
func (s *Service) Update(ctx context.Context, db, key, sessionID string, value json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(value) {
		return nil, &InvalidValueError{Key: key}
	}
	defer s.lock(db, key)()

	stored, err := s.stored(ctx, db, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, &blobstore.ErrNotFound{Key: key}
	}
	updated, item, err := blobstore.UpdateItem(key, stored, value)
	if err != nil {
		if blobstore.IsNotFound(err) {
			return nil, err
		}
		return nil, &InvalidValueError{Key: key, Err: err}
	}
	if err := s.repository.PutBlob(ctx, db, key, updated); err != nil {
		return nil, fmt.Errorf("failed to put %s/%s: %v", db, key, err)
	}
	s.notify(db, messages.EventUpdated, sessionID, key, updated)
	return item, nil
}

// Delete removes the item with id from the collection under key, or the
// whole key when id is empty.
func (s *Service) Delete(ctx context.Context, db, key, sessionID, id string) error {
	defer s.lock(db, key)()

	if id == "" {
		if err := s.repository.DeleteBlob(ctx, db, key); err != nil {
			if repositories.IsNotFound(err) {
				return &blobstore.ErrNotFound{Key: key}
			}
			return fmt.Errorf("failed to delete %s/%s: %v", db, key, err)
		}
		s.notify(db, messages.EventDeleted, sessionID, key, nil)
		return nil
	}

	stored, err := s.stored(ctx, db, key)
	if err != nil {
		return err
	}
	updated, err := blobstore.DeleteItem(key, stored, id)
	if err != nil {
		return err
	}
	if err := s.repository.PutBlob(ctx, db, key, updated); err != nil {
		return fmt.Errorf("failed to put %s/%s: %v", db, key, err)
	}
	s.notify(db, messages.EventDeleted, sessionID, key, updated)
	return nil
}

func (s *Service) notify(db string, eventType messages.EventType, sessionID, key string, value json.RawMessage) {
	s.logger.Trace("%s %s/%s by session %s", eventType, db, key, sessionID)
	s.onChange(db, &messages.Event{
		Event:     eventType,
		SessionID: sessionID,
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
	})
}
