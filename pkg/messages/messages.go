package messages

import "encoding/json"

const (
	// MessageBufferSize is the read limit for a single notification frame.
	MessageBufferSize = 1 << 20
)

// Keep-alive exchanges travel as plain text frames.
const (
	KeepAlivePing = "PING"
	KeepAlivePong = "PONG"
)

type EventType string

// Session events describe the notification channel itself.
const (
	EventNew    EventType = "NEW"
	EventOpened EventType = "OPENED"
	EventClosed EventType = "CLOSED"
	EventError  EventType = "ERROR"
)

// Data events describe a change to a stored key.
const (
	EventUpdated EventType = "UPDATED"
	EventAdded   EventType = "ADDED"
	EventDeleted EventType = "DELETED"
)

// Event is a notification pushed to subscribers.
type Event struct {
	Event     EventType       `json:"event"`
	SessionID string          `json:"sessionId,omitempty"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// IsSession reports whether the event is about the channel rather than data.
func (e *Event) IsSession() bool {
	switch e.Event {
	case EventNew, EventOpened, EventClosed, EventError:
		return true
	}
	return false
}

// Hello is the first frame a subscriber sends.
type Hello struct {
	APIKey string `json:"API_KEY"`
}
