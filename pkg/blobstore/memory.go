package blobstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/google/uuid"
)

const subscriptionBufferSize = 256

type subscription struct {
	sessionID string
	events    chan *Event
}

// MemoryStore is an in-process shared store. Each replica talks to it
// through its own Session so that notifications about its own writes are
// suppressed, the same way the remote store does it.
type MemoryStore struct {
	lock          sync.Mutex
	values        map[string]json.RawMessage
	subscriptions map[*subscription]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:        make(map[string]json.RawMessage),
		subscriptions: make(map[*subscription]struct{}),
	}
}

// Session returns a client bound to a fresh session id.
func (m *MemoryStore) Session() *MemorySession {
	return &MemorySession{
		store: m,
		id:    uuid.NewString(),
	}
}

// publish must be called with the lock held. Slow subscribers lose events.
func (m *MemoryStore) publish(e *Event) {
	for sub := range m.subscriptions {
		if !e.IsSession() && sub.sessionID == e.SessionID {
			continue
		}
		select {
		case sub.events <- e:
		default:
		}
	}
}

type MemorySession struct {
	store *MemoryStore
	id    string
}

var _ Client = (*MemorySession)(nil)

func (s *MemorySession) SessionID() string {
	return s.id
}

func (s *MemorySession) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	v, ok := s.store.values[key]
	if !ok {
		return nil, &ErrNotFound{Key: key}
	}
	return append(json.RawMessage{}, v...), nil
}

func (s *MemorySession) Set(ctx context.Context, key string, value interface{}) error {
	b, err := marshal(value)
	if err != nil {
		return err
	}
	b = append(json.RawMessage{}, b...)
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	s.store.values[key] = b
	s.store.publish(&Event{Event: messages.EventUpdated, SessionID: s.id, Key: key, Value: b})
	return nil
}

func (s *MemorySession) Add(ctx context.Context, key string, value interface{}) ([]json.RawMessage, error) {
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	updated, added, err := AddItems(s.store.values[key], value, uuid.NewString)
	if err != nil {
		return nil, err
	}
	s.store.values[key] = updated
	s.store.publish(&Event{Event: messages.EventAdded, SessionID: s.id, Key: key, Value: updated})
	return added, nil
}

func (s *MemorySession) Update(ctx context.Context, key string, value interface{}) (json.RawMessage, error) {
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	stored, ok := s.store.values[key]
	if !ok {
		return nil, &ErrNotFound{Key: key}
	}
	updated, item, err := UpdateItem(key, stored, value)
	if err != nil {
		return nil, err
	}
	s.store.values[key] = updated
	s.store.publish(&Event{Event: messages.EventUpdated, SessionID: s.id, Key: key, Value: updated})
	return item, nil
}

func (s *MemorySession) Delete(ctx context.Context, key string, id string) error {
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	stored, ok := s.store.values[key]
	if !ok {
		return &ErrNotFound{Key: key}
	}
	if id == "" {
		delete(s.store.values, key)
		s.store.publish(&Event{Event: messages.EventDeleted, SessionID: s.id, Key: key})
		return nil
	}
	updated, err := DeleteItem(key, stored, id)
	if err != nil {
		return err
	}
	s.store.values[key] = updated
	s.store.publish(&Event{Event: messages.EventDeleted, SessionID: s.id, Key: key, Value: updated})
	return nil
}

// Subscribe delivers NEW and OPENED first, then data events from other
// sessions until ctx is done.
func (s *MemorySession) Subscribe(ctx context.Context) (<-chan *Event, error) {
	sub := &subscription{
		sessionID: s.id,
		events:    make(chan *Event, subscriptionBufferSize),
	}
	sub.events <- &Event{Event: messages.EventNew, SessionID: s.id}
	sub.events <- &Event{Event: messages.EventOpened, SessionID: s.id}

	s.store.lock.Lock()
	s.store.subscriptions[sub] = struct{}{}
	s.store.lock.Unlock()

	go func() {
		<-ctx.Done()
		s.store.lock.Lock()
		delete(s.store.subscriptions, sub)
		close(sub.events)
		s.store.lock.Unlock()
	}()

	return sub.events, nil
}
