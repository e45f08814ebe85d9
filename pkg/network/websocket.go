package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/gorilla/websocket"
)

// HelloTimeout bounds the wait for the first frame of a subscriber
const HelloTimeout = 10 * time.Second

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WriteEventToWS writes an Event to a WebSocket connection as a binary frame
func WriteEventToWS(sub *Subscriber, e *messages.Event) error {
	b, err := messages.SerializeEvent(e)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %v", err)
	}

	if err := sub.WriteBinary(b); err != nil {
		return fmt.Errorf("failed to write event to WebSocket connection: %v", err)
	}

	return nil
}

// ReadHelloFromWS reads the hello frame that opens a subscription
func ReadHelloFromWS(conn *websocket.Conn) (*messages.Hello, error) {
	if err := conn.SetReadDeadline(time.Now().Add(HelloTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %v", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	hello := &messages.Hello{}
	if err := json.Unmarshal(data, hello); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hello: %v", err)
	}

	return hello, nil
}

// WriteErrorToWS sends an ERROR event on a connection that never became a subscriber
func WriteErrorToWS(conn *websocket.Conn, message string) error {
	b, err := messages.SerializeEvent(&messages.Event{Event: messages.EventError, Message: message})
	if err != nil {
		return fmt.Errorf("failed to serialize event: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write event to WebSocket connection: %v", err)
	}
	return nil
}
