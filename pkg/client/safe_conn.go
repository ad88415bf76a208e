package client

import (
	"sync"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/gorilla/websocket"
)

// SafeConn wraps a Transport with write synchronization. gorilla/websocket
// allows one concurrent reader and one concurrent writer; the receive loop
// is the only reader, and every write goes through the mutex here.
type SafeConn struct {
	t  Transport
	mu sync.Mutex // Protects writes to t
}

// NewSafeConn wraps a transport with write synchronization
func NewSafeConn(t Transport) *SafeConn {
	return &SafeConn{t: t}
}

// WriteAction encodes and sends one action as a text frame
func (sc *SafeConn) WriteAction(a protocol.Action) error {
	data, err := protocol.EncodeAction(a)
	if err != nil {
		return err
	}
	return sc.WriteBytes(data)
}

// WriteBytes sends a pre-encoded text frame
func (sc *SafeConn) WriteBytes(data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.t.WriteMessage(websocket.TextMessage, data)
}

// ReadFrame reads the next frame payload.
// Reads don't need write synchronization.
func (sc *SafeConn) ReadFrame() ([]byte, error) {
	_, data, err := sc.t.ReadMessage()
	return data, err
}

// Close closes the underlying transport
func (sc *SafeConn) Close() error {
	return sc.t.Close()
}
