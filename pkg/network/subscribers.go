package network

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// SessionIDMaxRetries represents the maximum number of retries when generating a unique session id
	SessionIDMaxRetries = 16
)

// Subscriber is an open notification channel for one database
type Subscriber struct {
	SessionID string
	Database  string
	UserID    string

	conn      *websocket.Conn
	writeLock sync.Mutex
}

// Conn returns the underlying connection
func (s *Subscriber) Conn() *websocket.Conn {
	return s.conn
}

// WriteBinary sends a binary frame. Writes are serialized per connection.
func (s *Subscriber) WriteBinary(b []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, b)
}

// WriteText sends a text frame. Writes are serialized per connection.
func (s *Subscriber) WriteText(text string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// SubscriberManager tracks the open notification channels
type SubscriberManager struct {
	subscribers     map[string]*Subscriber
	subscribersLock sync.RWMutex
	newID           func() string
}

// NewSubscriberManager creates a new SubscriberManager
func NewSubscriberManager() *SubscriberManager {
	return &SubscriberManager{
		subscribers: make(map[string]*Subscriber),
		newID:       uuid.NewString,
	}
}

// Connect registers a connection and returns its subscriber with a fresh session id
func (sm *SubscriberManager) Connect(conn *websocket.Conn, database string, userID string) (*Subscriber, error) {
	sm.subscribersLock.Lock()
	defer sm.subscribersLock.Unlock()

	sessionID, err := sm.generateUniqueID(SessionIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a unique session id: %v", err)
	}
	sub := &Subscriber{
		SessionID: sessionID,
		Database:  database,
		UserID:    userID,
		conn:      conn,
	}
	sm.subscribers[sessionID] = sub
	return sub, nil
}

// Disconnect removes a subscriber from the manager
func (sm *SubscriberManager) Disconnect(sessionID string) {
	sm.subscribersLock.Lock()
	defer sm.subscribersLock.Unlock()
	delete(sm.subscribers, sessionID)
}

// GetSubscribers returns the subscribers of a database
func (sm *SubscriberManager) GetSubscribers(database string) []*Subscriber {
	sm.subscribersLock.RLock()
	defer sm.subscribersLock.RUnlock()
	subs := make([]*Subscriber, 0, len(sm.subscribers))
	for _, sub := range sm.subscribers {
		if sub.Database == database {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Exists reports whether a session is still connected
func (sm *SubscriberManager) Exists(sessionID string) bool {
	sm.subscribersLock.RLock()
	defer sm.subscribersLock.RUnlock()
	_, ok := sm.subscribers[sessionID]
	return ok
}

// Count returns the number of open channels
func (sm *SubscriberManager) Count() int {
	sm.subscribersLock.RLock()
	defer sm.subscribersLock.RUnlock()
	return len(sm.subscribers)
}

// generateUniqueID reads the subscribers, so it needs to be locked before calling
func (sm *SubscriberManager) generateUniqueID(maxRetries int) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := sm.newID()
		if id == "" {
			continue
		}
		if _, ok := sm.subscribers[id]; !ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
