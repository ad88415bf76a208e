package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultReconnectInterval is how often a disconnected viewer retries
const DefaultReconnectInterval = 5 * time.Second

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("connection closed")

// ConnectionStateType represents the connection status
type ConnectionStateType int

const (
	StateTypeConnected ConnectionStateType = iota
	StateTypeDisconnected
	StateTypeReconnecting
)

func (s ConnectionStateType) String() string {
	switch s {
	case StateTypeConnected:
		return "connected"
	case StateTypeDisconnected:
		return "disconnected"
	case StateTypeReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionStateUpdate represents a connection state change
type ConnectionStateUpdate struct {
	State     ConnectionStateType
	Attempt   int
	SessionID string
	Err       error
}

// Transport is one open stream to the server. *websocket.Conn implements it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a transport to a websocket URL
type DialFunc func(ctx context.Context, url string) (Transport, error)

// HistoryRecorder stores successful connections. StateInterface satisfies it.
type HistoryRecorder interface {
	SaveSuccessfulConnection(address string) error
}

// WebSocketDialer returns a DialFunc backed by gorilla/websocket
func WebSocketDialer(handshakeTimeout time.Duration) DialFunc {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, url string) (Transport, error) {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket handshake with %s failed (HTTP %d): %w", url, resp.StatusCode, err)
			}
			return nil, fmt.Errorf("websocket dial %s: %w", url, err)
		}
		return conn, nil
	}
}

// Connection keeps at most one transport to the queue server open, feeds
// every inbound frame into the replica and sends user actions.
//
// The receive loop of the active transport is the only writer of the
// replica. A transport is only forgotten after its receive loop stopped, so
// a reconnect can never race frames from the previous session.
type Connection struct {
	addr     string // websocket URL, e.g. "ws://localhost:8080/ws"
	origin   string
	dial     DialFunc
	replica  *replica.Replica
	interval time.Duration
	logger   zerolog.Logger
	metrics  *Metrics
	history  HistoryRecorder

	// ticker source, replaceable in tests
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu          sync.RWMutex
	conn        *SafeConn // nil when there is no active transport
	sessionID   string
	connecting  bool
	attempt     int // consecutive failed attempts
	closed      bool
	stateClosed bool

	stateChange chan ConnectionStateUpdate
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// NewConnection creates a connection manager for the server at origin.
// Nothing is dialed until Connect or Run is called.
func NewConnection(origin string, rep *replica.Replica) (*Connection, error) {
	addr, err := EndpointURL(origin)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		rep = replica.New()
	}

	return &Connection{
		addr:        addr,
		origin:      origin,
		dial:        WebSocketDialer(10 * time.Second),
		replica:     rep,
		interval:    DefaultReconnectInterval,
		logger:      zerolog.Nop(),
		newTicker:   realTicker,
		stateChange: make(chan ConnectionStateUpdate, 10),
		shutdown:    make(chan struct{}),
	}, nil
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// SetLogger sets the logger for connection events
func (c *Connection) SetLogger(logger zerolog.Logger) {
	c.logger = logger.With().Str("component", "connection").Logger()
}

// SetMetrics enables Prometheus instrumentation
func (c *Connection) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetHistory records successful connections in the viewer state
func (c *Connection) SetHistory(h HistoryRecorder) {
	c.history = h
}

// SetDialer replaces the websocket dialer
func (c *Connection) SetDialer(dial DialFunc) {
	c.dial = dial
}

// SetReconnectInterval changes the fixed retry period. Must be called
// before Run.
func (c *Connection) SetReconnectInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// GetAddress returns the websocket URL
func (c *Connection) GetAddress() string {
	return c.addr
}

// GetOrigin returns the origin the address was derived from
func (c *Connection) GetOrigin() string {
	return c.origin
}

// Replica returns the store fed by this connection
func (c *Connection) Replica() *replica.Replica {
	return c.replica
}

// IsConnected returns whether a transport is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// SessionID identifies the current (or last) transport
func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// StateChanges returns the channel for connection state updates
func (c *Connection) StateChanges() <-chan ConnectionStateUpdate {
	return c.stateChange
}

// Connect opens a transport unless one is already active (or being
// opened), in which case it does nothing. On success the replica is reset:
// it stays empty until the server sends a sync.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	c.logger.Debug().Str("addr", c.addr).Msg("connecting")

	t, err := c.dial(ctx, c.addr)
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		c.metrics.connectAttempt("failure")
		c.logger.Debug().Err(err).Str("addr", c.addr).Int("attempt", attempt).Msg("connect failed")
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}

	sessionID := uuid.NewString()
	sc := NewSafeConn(t)

	c.mu.Lock()
	c.connecting = false
	if c.closed {
		c.mu.Unlock()
		sc.Close()
		return ErrClosed
	}
	c.conn = sc
	c.sessionID = sessionID
	c.attempt = 0
	c.wg.Add(1)
	c.mu.Unlock()

	// Whatever we held belongs to the previous session
	c.replica.Reset()
	c.metrics.setReplicaSize(0)

	c.metrics.connectAttempt("success")
	c.metrics.setConnected(true)
	c.logger.Info().Str("addr", c.addr).Str("session", sessionID).Msg("connected")

	if c.history != nil {
		if err := c.history.SaveSuccessfulConnection(c.addr); err != nil {
			c.logger.Warn().Err(err).Msg("failed to record connection history")
		}
	}

	c.emitState(ConnectionStateUpdate{State: StateTypeConnected, SessionID: sessionID})

	go c.readLoop(sc, sessionID)
	return nil
}

// Run connects and then checks on a fixed interval whether a transport is
// active, connecting again when it is not. There is no backoff and no
// attempt limit. Run returns when ctx is cancelled or Close is called.
func (c *Connection) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil && errors.Is(err, ErrClosed) {
		return err
	}

	ticks, stop := c.newTicker(c.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			c.Disconnect()
			return ctx.Err()
		case <-c.shutdown:
			return ErrClosed
		case <-ticks:
			if c.IsConnected() {
				continue
			}

			c.mu.RLock()
			attempt := c.attempt + 1
			c.mu.RUnlock()

			c.metrics.reconnectCheck()
			c.emitState(ConnectionStateUpdate{State: StateTypeReconnecting, Attempt: attempt})

			if err := c.Connect(ctx); err != nil && errors.Is(err, ErrClosed) {
				return err
			}
		}
	}
}

// Dispatch sends a user action to the server. It is fire-and-forget: with
// no active transport the action is dropped, and no acknowledgement is
// awaited. The returned bool only reports whether the action was written.
func (c *Connection) Dispatch(a protocol.Action) bool {
	name := a.Name()

	c.mu.RLock()
	sc := c.conn
	c.mu.RUnlock()

	if sc == nil {
		c.metrics.action(name, "dropped")
		c.logger.Debug().Str("action", name).Msg("not connected, dropping action")
		return false
	}

	if err := sc.WriteAction(a); err != nil {
		c.metrics.action(name, "failed")
		c.logger.Debug().Err(err).Str("action", name).Msg("failed to send action")
		return false
	}

	c.metrics.action(name, "sent")
	c.logger.Debug().Str("action", name).Str("id", a.ID()).Msg("→ action")
	return true
}

// Disconnect closes the active transport. The receive loop notices and
// marks the connection as down; Run will reconnect on its next check.
func (c *Connection) Disconnect() {
	c.mu.RLock()
	sc := c.conn
	c.mu.RUnlock()

	if sc != nil {
		c.logger.Debug().Str("addr", c.addr).Msg("disconnecting")
		sc.Close()
	}
}

// Close shuts down the connection permanently
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.shutdown)
	c.Disconnect()
	c.wg.Wait()

	c.mu.Lock()
	c.stateClosed = true
	close(c.stateChange)
	c.mu.Unlock()
}

// readLoop applies every frame of one transport, in arrival order
func (c *Connection) readLoop(sc *SafeConn, sessionID string) {
	defer c.wg.Done()

	for {
		data, err := sc.ReadFrame()
		if err != nil {
			c.handleClose(sc, sessionID, err)
			return
		}
		c.handleFrame(sessionID, data)
	}
}

// handleFrame decodes and applies one frame. Bad frames are dropped; they
// never end the session.
func (c *Connection) handleFrame(sessionID string, data []byte) {
	ev, err := protocol.DecodeEvent(data)
	if err != nil {
		c.metrics.frameMalformed()
		c.logger.Debug().Err(err).Str("session", sessionID).Int("bytes", len(data)).Msg("dropping malformed frame")
		return
	}

	if unknown, ok := ev.(protocol.UnknownEvent); ok {
		c.metrics.frameReceived("unknown")
		c.logger.Debug().Str("session", sessionID).Str("action", unknown.Action).Msg("ignoring unknown action")
		return
	}

	c.replica.Apply(ev)
	c.metrics.frameReceived(ev.Kind())
	c.metrics.setReplicaSize(c.replica.Len())

	switch e := ev.(type) {
	case protocol.SyncEvent:
		c.logger.Debug().Str("session", sessionID).Int("messages", len(e.Messages)).Msg("← sync")
	case protocol.AddEvent:
		c.logger.Debug().Str("session", sessionID).Str("id", e.ID).Msg("← add")
	case protocol.DelEvent:
		c.logger.Debug().Str("session", sessionID).Str("id", e.ID).Msg("← del")
	}
}

// handleClose treats every way a transport ends the same: it is gone and
// the next reconnect check will replace it.
func (c *Connection) handleClose(sc *SafeConn, sessionID string, err error) {
	sc.Close()

	c.mu.Lock()
	if c.conn == sc {
		c.conn = nil
	}
	c.mu.Unlock()

	c.metrics.setConnected(false)
	c.logger.Info().Err(err).Str("session", sessionID).Msg("disconnected")
	c.emitState(ConnectionStateUpdate{State: StateTypeDisconnected, SessionID: sessionID, Err: err})
}

// emitState delivers a state update if anyone is listening
func (c *Connection) emitState(update ConnectionStateUpdate) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stateClosed {
		return
	}
	select {
	case c.stateChange <- update:
	default:
	}
}
