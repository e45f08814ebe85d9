// Package blobstore is the client side of the shared key-value store. Each
// key holds one JSON value; keys holding arrays act as collections whose
// items carry an "id".
package blobstore

import (
	"context"
	"encoding/json"

	"github.com/cbodonnell/tsuro/pkg/messages"
)

type Event = messages.Event

// Store is the request side of the shared store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value interface{}) error
	// Add appends value (an item or an array of items) to the collection
	// under key and returns the stored items with their ids.
	Add(ctx context.Context, key string, value interface{}) ([]json.RawMessage, error)
	// Update replaces the collection item with the same id as value, or the
	// whole value if key is not a collection. It returns the stored value.
	Update(ctx context.Context, key string, value interface{}) (json.RawMessage, error)
	// Delete removes the item with id from the collection under key, or the
	// whole key when id is empty.
	Delete(ctx context.Context, key string, id string) error
}

// Subscriber opens the change notification channel. The channel is
// closed when ctx is done or the connection drops.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *Event, error)
}

// Client is a Store that also delivers notifications.
type Client interface {
	Store
	Subscriber
}
