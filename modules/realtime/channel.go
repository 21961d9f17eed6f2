package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gorilla/websocket"
)

// Pseudo events dispatched to subscribers on connection changes.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

const writeWait = 10 * time.Second

var (
	// ErrIncompleteCredential is returned when connecting without token or member id.
	ErrIncompleteCredential = errors.New("realtime: credential requires both token and member id")
	// ErrNotConnected is returned when emitting without a live connection.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrRejected is returned when the server refuses the handshake credential.
	ErrRejected = errors.New("realtime: handshake rejected")
)

// Envelope is the wire frame exchanged on a channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the data of one event.
type Handler func(data json.RawMessage)

// StatusChange is the status signal of a channel.
type StatusChange struct {
	Channel string
	Status  domain.ConnectionStatus
	Reason  string
	Err     error
}

// Config configures one channel.
type Config struct {
	Name             string
	URL              string
	HandshakeTimeout time.Duration
	MaxReconnects    int // negative retries forever
	BaseRetryDelay   time.Duration
	MaxRetryDelay    time.Duration
}

// DefaultConfig returns a channel configuration with the default reconnect policy.
func DefaultConfig(name, rawURL string) Config {
	return Config{
		Name:             name,
		URL:              rawURL,
		HandshakeTimeout: 10 * time.Second,
		MaxReconnects:    5,
		BaseRetryDelay:   time.Second,
		MaxRetryDelay:    30 * time.Second,
	}
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Channel owns at most one authenticated websocket connection. Handlers are
// kept on the channel, so reconnecting never duplicates them. Handlers run on
// the read goroutine and must not call Connect or Close.
type Channel struct {
	config Config
	logger types.Logger
	dialer *websocket.Dialer

	lifecycle sync.Mutex // serializes Connect and Close

	mu     sync.Mutex
	conn   *websocket.Conn
	cred   domain.Credential
	sess   *session
	status domain.ConnectionStatus

	writeMu sync.Mutex

	handlersMu     sync.RWMutex
	handlers       map[string]map[int]Handler
	statusHandlers map[int]func(StatusChange)
	nextID         int
}

// NewChannel creates a disconnected channel.
func NewChannel(config Config, logger types.Logger) *Channel {
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = DefaultConfig("", "").MaxRetryDelay
	}
	if config.BaseRetryDelay <= 0 {
		config.BaseRetryDelay = DefaultConfig("", "").BaseRetryDelay
	}
	return &Channel{
		config: config,
		logger: logger.With("channel", config.Name),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		status:         domain.StatusDisconnected,
		handlers:       make(map[string]map[int]Handler),
		statusHandlers: make(map[int]func(StatusChange)),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.config.Name
}

// Status returns the last status signal.
func (c *Channel) Status() domain.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers handler for event. The returned function detaches it.
func (c *Channel) Subscribe(event string, handler Handler) (unsubscribe func()) {
	c.handlersMu.Lock()
	id := c.nextID
	c.nextID++
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	c.handlers[event][id] = handler
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.handlers[event], id)
	}
}

// OnStatus registers fn for status signals. The returned function detaches it.
func (c *Channel) OnStatus(fn func(StatusChange)) (unsubscribe func()) {
	c.handlersMu.Lock()
	id := c.nextID
	c.nextID++
	c.statusHandlers[id] = fn
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.statusHandlers, id)
	}
}

// Connect tears down any previous connection and dials with cred. When the
// first dial fails the error is returned and the channel keeps retrying in
// the background until Close or the next Connect. A rejected handshake is
// never retried.
func (c *Channel) Connect(ctx context.Context, cred domain.Credential) error {
	if !cred.Complete() {
		c.logger.Error("Refusing to connect with incomplete credential")
		return ErrIncompleteCredential
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.teardown("reconnect")

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &session{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.cred = cred
	c.sess = s
	c.mu.Unlock()

	conn, err := c.dial(ctx, cred)
	if err != nil {
		c.setStatus(StatusChange{Status: domain.StatusError, Err: err, Reason: err.Error()})
		if errors.Is(err, ErrRejected) {
			close(s.done)
			return err
		}
		go c.run(sessCtx, s, nil)
		return err
	}
	if !c.attach(sessCtx, conn) {
		_ = conn.Close()
		close(s.done)
		return context.Canceled
	}
	c.connected()
	go c.run(sessCtx, s, conn)
	return nil
}

// Close tears down the connection and stops reconnecting.
func (c *Channel) Close() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.teardown("client closed")
	return nil
}

// Emit sends one event on the live connection.
func (c *Channel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// dial opens a connection. The token travels in the handshake header and the
// member id in the query string, never in message payloads.
func (c *Channel) dial(ctx context.Context, cred domain.Credential) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid channel url: %w", err)
	}
	q := u.Query()
	q.Set("memberId", cred.MemberID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", c.config.Name, err)
	}
	return conn, nil
}

// attach publishes conn as the live connection unless the session was
// cancelled meanwhile.
func (c *Channel) attach(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// teardown cancels the current session, closes its connection and waits
// for its goroutine. Callers hold c.lifecycle.
func (c *Channel) teardown(reason string) {
	c.mu.Lock()
	s := c.sess
	conn := c.conn
	c.sess = nil
	c.conn = nil
	if s != nil {
		s.cancel()
	}
	c.mu.Unlock()

	if s == nil {
		return
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	<-s.done

	if conn != nil {
		c.disconnected(reason)
		return
	}
	c.mu.Lock()
	c.status = domain.StatusDisconnected
	c.mu.Unlock()
}

// run reads from conn and reconnects with capped exponential backoff after
// unexpected drops. A successful connect resets the attempt counter. It stops
// on ErrRejected.
func (c *Channel) run(ctx context.Context, s *session, conn *websocket.Conn) {
	defer close(s.done)

	attempts := 0
	for {
		if conn != nil {
			reason := c.readLoop(conn)
			c.detach(conn)
			conn = nil
			if ctx.Err() != nil {
				return
			}
			c.disconnected(reason)
		}

		if c.config.MaxReconnects >= 0 && attempts >= c.config.MaxReconnects {
			c.logger.Warn("Giving up reconnecting", "attempts", attempts)
			return
		}
		attempts++
		delay := c.retryDelay(attempts)
		c.setStatus(StatusChange{Status: domain.StatusReconnecting, Reason: fmt.Sprintf("attempt %d in %v", attempts, delay)})

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		cred := c.cred
		c.mu.Unlock()

		next, err := c.dial(ctx, cred)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setStatus(StatusChange{Status: domain.StatusError, Err: err, Reason: err.Error()})
			if errors.Is(err, ErrRejected) {
				c.logger.Warn("Handshake rejected, not reconnecting", "channel", c.config.Name)
				return
			}
			continue
		}
		if !c.attach(ctx, next) {
			_ = next.Close()
			return
		}
		attempts = 0
		conn = next
		c.connected()
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) string {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Sprintf("closed by server (%d)", closeErr.Code)
			}
			return "transport error: " + err.Error()
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(env.Event, env.Data)
	}
}

func (c *Channel) retryDelay(attempt int) time.Duration {
	delay := float64(c.config.BaseRetryDelay) * math.Pow(2, float64(attempt-1))
	if time.Duration(delay) > c.config.MaxRetryDelay {
		return c.config.MaxRetryDelay
	}
	return time.Duration(delay)
}

func (c *Channel) connected() {
	c.setStatus(StatusChange{Status: domain.StatusConnected})
	c.dispatch(EventConnect, nil)
}

func (c *Channel) disconnected(reason string) {
	c.setStatus(StatusChange{Status: domain.StatusDisconnected, Reason: reason})
	data, _ := json.Marshal(reason)
	c.dispatch(EventDisconnect, data)
}

func (c *Channel) setStatus(change StatusChange) {
	change.Channel = c.config.Name

	c.mu.Lock()
	c.status = change.Status
	c.mu.Unlock()

	switch change.Status {
	case domain.StatusConnected:
		c.logger.Info("Connected")
	case domain.StatusDisconnected:
		c.logger.Info("Disconnected", "reason", change.Reason)
	case domain.StatusError:
		c.logger.Warn("Connect error", "error", change.Err)
	default:
		c.logger.Debug("Status changed", "status", change.Status, "reason", change.Reason)
	}

	c.handlersMu.RLock()
	fns := make([]func(StatusChange), 0, len(c.statusHandlers))
	for _, fn := range c.statusHandlers {
		fns = append(fns, fn)
	}
	c.handlersMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (c *Channel) dispatch(event string, data json.RawMessage) {
	c.handlersMu.RLock()
	handlers := make([]Handler, 0, len(c.handlers[event]))
	for _, h := range c.handlers[event] {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}
