package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
)

// MockConnection is a test implementation of ConnectionInterface
type MockConnection struct {
	mu sync.RWMutex

	// State
	connected  bool
	address    string
	sessionID  string
	connectErr error
	closed     bool

	replica     *replica.Replica
	stateChange chan ConnectionStateUpdate

	// Dispatched actions for verification (only those that were "sent")
	SentActions []protocol.Action
	// Actions dispatched while disconnected
	DroppedActions []protocol.Action
}

// NewMockConnection creates a new mock connection
func NewMockConnection(address string) *MockConnection {
	return &MockConnection{
		address:     address,
		sessionID:   "mock-session",
		replica:     replica.New(),
		stateChange: make(chan ConnectionStateUpdate, 10),
	}
}

// Connect simulates connecting to the server
func (m *MockConnection) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return m.connectErr
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting from the server
func (m *MockConnection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Close closes the mock connection
func (m *MockConnection) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.connected = false
	close(m.stateChange)
}

// IsConnected returns the connection status
func (m *MockConnection) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetAddress returns the mock address
func (m *MockConnection) GetAddress() string {
	return m.address
}

// SessionID returns the mock session id
func (m *MockConnection) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Replica returns the mock's replica, which tests may mutate directly
func (m *MockConnection) Replica() *replica.Replica {
	return m.replica
}

// StateChanges returns the state change channel
func (m *MockConnection) StateChanges() <-chan ConnectionStateUpdate {
	return m.stateChange
}

// Dispatch records the action, mirroring the drop-when-disconnected rule
func (m *MockConnection) Dispatch(a protocol.Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		m.DroppedActions = append(m.DroppedActions, a)
		return false
	}
	m.SentActions = append(m.SentActions, a)
	return true
}

// Test helpers

// SetConnected forces the connection status
func (m *MockConnection) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SetConnectError sets an error to return from Connect()
func (m *MockConnection) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SimulateStateChange sends a state change to the stateChange channel
func (m *MockConnection) SimulateStateChange(state ConnectionStateUpdate) {
	m.stateChange <- state
}

// GetSentActionCount returns the number of actions sent
func (m *MockConnection) GetSentActionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentActions)
}

// GetLastSentAction returns the last action sent, or error if none
func (m *MockConnection) GetLastSentAction() (protocol.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentActions) == 0 {
		return nil, fmt.Errorf("no actions sent")
	}

	return m.SentActions[len(m.SentActions)-1], nil
}

// ClearSentActions clears the recorded actions
func (m *MockConnection) ClearSentActions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentActions = nil
	m.DroppedActions = nil
}
