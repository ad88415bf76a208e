package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeQueueServer is a minimal queue server: it accepts viewers on /ws,
// optionally greets them with a sync and records the actions they send.
type fakeQueueServer struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int
	greeting map[protocol.MessageID]protocol.Record // sent as sync on connect when non-nil

	actions chan protocol.Action
}

func newFakeQueueServer(t *testing.T) *fakeQueueServer {
	t.Helper()

	s := &fakeQueueServer{
		t:       t,
		actions: make(chan protocol.Action, 100),
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.accepted++
		greeting := s.greeting
		s.mu.Unlock()

		if greeting != nil {
			data, err := protocol.EncodeEvent(protocol.SyncEvent{Messages: greeting})
			if err == nil {
				conn.WriteMessage(websocket.TextMessage, data)
			}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			a, err := protocol.DecodeAction(data)
			if err != nil {
				continue
			}
			s.actions <- a
		}
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// origin is the http URL a browser would have loaded the page from
func (s *fakeQueueServer) origin() string {
	return s.server.URL
}

func (s *fakeQueueServer) setGreeting(messages map[protocol.MessageID]protocol.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeting = messages
}

func (s *fakeQueueServer) acceptedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *fakeQueueServer) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(s.t, s.conns, "no viewer connected")
	return s.conns[len(s.conns)-1]
}

// send writes a server event to the most recent viewer
func (s *fakeQueueServer) send(ev protocol.Event) {
	s.t.Helper()
	data, err := protocol.EncodeEvent(ev)
	require.NoError(s.t, err)
	s.sendRaw(data)
}

func (s *fakeQueueServer) sendRaw(data []byte) {
	s.t.Helper()
	require.NoError(s.t, s.latest().WriteMessage(websocket.TextMessage, data))
}

// dropAll closes every viewer connection from the server side
func (s *fakeQueueServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *fakeQueueServer) Close() {
	s.dropAll()
	s.server.Close()
}

// manualTicker lets tests decide when reconnect checks happen. An unbuffered
// channel means a returning tick() was received by Run's loop.
type manualTicker struct {
	ch chan time.Time
}

func useManualTicker(c *Connection) *manualTicker {
	mt := &manualTicker{ch: make(chan time.Time)}
	c.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return mt.ch, func() {}
	}
	return mt
}

func (mt *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case mt.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect loop did not accept tick")
	}
}

// fakeTransport is an in-memory Transport
type fakeTransport struct {
	frames  chan []byte
	written chan []byte

	mu         sync.Mutex
	closed     bool
	failWrites bool
	done       chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames:  make(chan []byte, 100),
		written: make(chan []byte, 100),
		done:    make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.frames:
		return websocket.TextMessage, data, nil
	case <-f.done:
		return 0, nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.failWrites {
		return errors.New("transport closed")
	}
	f.written <- data
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// scriptedDialer hands out transports, or fails while failing is set
type scriptedDialer struct {
	mu         sync.Mutex
	attempts   int
	failing    bool
	transports []*fakeTransport
}

func (d *scriptedDialer) dial(ctx context.Context, url string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failing {
		return nil, errors.New("connection refused")
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *scriptedDialer) setFailing(failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = failing
}

func (d *scriptedDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *scriptedDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

func newTestConnection(t *testing.T, origin string) *Connection {
	t.Helper()
	conn, err := NewConnection(origin, replica.New())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func waitForState(t *testing.T, c *Connection, want ConnectionStateType) ConnectionStateUpdate {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-c.StateChanges():
			require.True(t, ok, "state channel closed while waiting for %s", want)
			if u.State == want {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
