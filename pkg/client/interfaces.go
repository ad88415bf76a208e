package client

import (
	"context"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
)

// ConnectionInterface defines the interface for client connections
// This allows for mocking in tests while the real Connection implements all these methods
type ConnectionInterface interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect()
	Close()
	IsConnected() bool
	GetAddress() string
	SessionID() string

	// Actions
	Dispatch(a protocol.Action) bool

	// Data
	Replica() *replica.Replica
	StateChanges() <-chan ConnectionStateUpdate
}

// StateInterface defines the interface for client state persistence
// This allows for mocking in tests while the real State implements all these methods
type StateInterface interface {
	// Configuration
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Connection history
	GetLastConnection() (*ConnectionRecord, error)
	GetConnection(address string) (*ConnectionRecord, error)
	SaveSuccessfulConnection(address string) error

	// Close the state
	Close() error
}

var (
	_ ConnectionInterface = (*Connection)(nil)
	_ ConnectionInterface = (*MockConnection)(nil)
	_ StateInterface      = (*State)(nil)
	_ StateInterface      = (*MockState)(nil)
	_ Sender              = (*Connection)(nil)
)
