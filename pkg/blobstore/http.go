package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"nhooyr.io/websocket"
)

const (
	HeaderAPIKey    = "API_KEY"
	HeaderSessionID = "SESSION_ID"

	DefaultMaxRetries = 3
	DefaultKeepAlive  = 10 * time.Second
)

// HTTPClient talks to the storage server over its REST API and the
// websocket notification channel.
type HTTPClient struct {
	baseURL    string
	database   string
	apiKey     string
	maxRetries int
	keepAlive  time.Duration
	httpClient *http.Client
	logger     *log.Logger

	lock      sync.RWMutex
	sessionID string
}

type NewHTTPClientOptions struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL  string
	Database string
	APIKey   string
	// MaxRetries is the number of immediate retries after a failed attempt.
	// Negative disables retries. Zero means DefaultMaxRetries.
	MaxRetries int
	KeepAlive  time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts NewHTTPClientOptions) *HTTPClient {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		database:   opts.Database,
		apiKey:     opts.APIKey,
		maxRetries: maxRetries,
		keepAlive:  keepAlive,
		httpClient: httpClient,
		logger:     logger.With("db", opts.Database),
	}
}

func (c *HTTPClient) SessionID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.sessionID
}

func (c *HTTPClient) setSessionID(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sessionID = id
}

func (c *HTTPClient) apiURL(key string, query url.Values) string {
	u := fmt.Sprintf("%s/api/%s/%s", c.baseURL, url.PathEscape(c.database), url.PathEscape(key))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *HTTPClient) subscribeURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return fmt.Sprintf("%s/subscribe/%s", u, url.PathEscape(c.database))
}

func (c *HTTPClient) headers(h http.Header) {
	h.Set(HeaderAPIKey, c.apiKey)
	if sessionID := c.SessionID(); sessionID != "" {
		h.Set(HeaderSessionID, sessionID)
	}
}

// do sends a request, retrying immediately on network failures and server
// errors. Client errors are not retried.
func (c *HTTPClient) do(ctx context.Context, op, method, key string, query url.Values, body interface{}) (json.RawMessage, int, error) {
	var payload []byte
	if body != nil {
		b, err := marshal(body)
		if err != nil {
			return nil, 0, err
		}
		payload = b
	}

	var lastErr error
	lastStatus := 0
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("HTTP retry #%d for %s %s", attempt, op, key)
		}
		attempts++

		req, err := http.NewRequestWithContext(ctx, method, c.apiURL(key, query), bytes.NewReader(payload))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %v", err)
		}
		c.headers(req.Header)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json;charset=utf-8")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr, lastStatus = err, 0
			if ctx.Err() != nil {
				break
			}
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr, lastStatus = fmt.Errorf("failed to read response: %v", err), resp.StatusCode
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			data = bytes.TrimSpace(data)
			if len(data) == 0 {
				return nil, resp.StatusCode, nil
			}
			return data, resp.StatusCode, nil
		case resp.StatusCode == http.StatusNoContent:
			return nil, resp.StatusCode, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, resp.StatusCode, &ErrNotFound{Key: key}
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, resp.StatusCode, &TransportError{
				Op:         op,
				Key:        key,
				StatusCode: resp.StatusCode,
				Attempts:   attempts,
				Err:        fmt.Errorf("%s", strings.TrimSpace(string(data))),
			}
		default:
			lastErr, lastStatus = fmt.Errorf("%s", strings.TrimSpace(string(data))), resp.StatusCode
		}
	}

	return nil, lastStatus, &TransportError{
		Op:         op,
		Key:        key,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (c *HTTPClient) Get(ctx context.Context, key string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("firstResult", "0")
	query.Set("maxResults", "-1")
	data, status, err := c.do(ctx, "get", http.MethodGet, key, query, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || data == nil {
		return nil, &ErrNotFound{Key: key}
	}
	return data, nil
}

func (c *HTTPClient) Set(ctx context.Context, key string, value interface{}) error {
	_, _, err := c.do(ctx, "set", http.MethodPut, key, nil, value)
	return err
}

func (c *HTTPClient) Add(ctx context.Context, key string, value interface{}) ([]json.RawMessage, error) {
	data, _, err := c.do(ctx, "add", http.MethodPost, key, nil, value)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if data != nil {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode added items: %v", err)
		}
	}
	return items, nil
}

func (c *HTTPClient) Update(ctx context.Context, key string, value interface{}) (json.RawMessage, error) {
	data, _, err := c.do(ctx, "update", http.MethodPatch, key, nil, value)
	return data, err
}

func (c *HTTPClient) Delete(ctx context.Context, key string, id string) error {
	var query url.Values
	if id != "" {
		query = url.Values{}
		query.Set("id", id)
	}
	_, _, err := c.do(ctx, "delete", http.MethodDelete, key, query, nil)
	return err
}

// Subscribe dials the notification channel. The NEW event sets the session
// id sent with later requests, and data events caused by this session are
// dropped. A CLOSED event is delivered before the channel closes.
func (c *HTTPClient) Subscribe(ctx context.Context) (<-chan *Event, error) {
	header := http.Header{}
	header.Set(HeaderAPIKey, c.apiKey)
	conn, _, err := websocket.Dial(ctx, c.subscribeURL(), &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, &TransportError{Op: "subscribe", Key: c.database, Attempts: 1, Err: err}
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	hello, err := json.Marshal(messages.Hello{APIKey: c.apiKey})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to marshal hello: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, hello); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, &TransportError{Op: "subscribe", Key: c.database, Attempts: 1, Err: err}
	}

	events := make(chan *Event, subscriptionBufferSize)
	ctx, cancel := context.WithCancel(ctx)
	go c.keepAliveLoop(ctx, conn)
	go func() {
		defer func() {
			cancel()
			conn.Close(websocket.StatusNormalClosure, "")
			c.setSessionID("")
			close(events)
		}()
		c.readLoop(ctx, conn, events)
	}()
	return events, nil
}

func (c *HTTPClient) keepAliveLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, []byte(messages.KeepAlivePing)); err != nil {
				c.logger.Debug("keep-alive stopped: %v", err)
				return
			}
		}
	}
}

func (c *HTTPClient) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- *Event) {
	deliver := func(e *Event) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("notification channel closed: %v", err)
			}
			// The receiver may already be gone, so this is best effort.
			select {
			case events <- &Event{Event: messages.EventClosed, SessionID: c.SessionID(), Message: "Websocket closed"}:
			default:
			}
			return
		}

		var e *Event
		switch msgType {
		case websocket.MessageBinary:
			e, err = messages.DeserializeEvent(data)
		default:
			if string(data) == messages.KeepAlivePong {
				continue
			}
			e = &Event{}
			err = json.Unmarshal(data, e)
		}
		if err != nil {
			c.logger.Warn("unexpected notification frame: %v", err)
			continue
		}

		switch {
		case e.Event == messages.EventNew && e.SessionID != "":
			c.setSessionID(e.SessionID)
			c.logger.Debug("new session id: %s", e.SessionID)
		case e.IsSession():
		default:
			own := c.SessionID()
			if own == "" || own == e.SessionID {
				continue
			}
		}
		if !deliver(e) {
			return
		}
	}
}
