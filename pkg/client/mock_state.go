package client

import (
	"sync"
	"time"
)

// MockState is an in-memory test implementation of StateInterface
type MockState struct {
	mu sync.RWMutex

	// In-memory storage
	config      map[string]string
	connections map[string]*ConnectionRecord

	// Error injection
	getConfigErr      error
	setConfigErr      error
	saveConnectionErr error
}

// NewMockState creates a new mock state
func NewMockState() *MockState {
	return &MockState{
		config:      make(map[string]string),
		connections: make(map[string]*ConnectionRecord),
	}
}

// GetConfig retrieves a configuration value
func (s *MockState) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getConfigErr != nil {
		return "", s.getConfigErr
	}

	return s.config[key], nil
}

// SetConfig stores a configuration value
func (s *MockState) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setConfigErr != nil {
		return s.setConfigErr
	}

	s.config[key] = value
	return nil
}

// SaveSuccessfulConnection records a connection in memory
func (s *MockState) SaveSuccessfulConnection(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveConnectionErr != nil {
		return s.saveConnectionErr
	}

	rec, ok := s.connections[address]
	if !ok {
		rec = &ConnectionRecord{Address: address}
		s.connections[address] = rec
	}
	rec.LastSuccessAt = time.Now()
	rec.ConnectCount++
	return nil
}

// GetConnection returns a copy of the history for address
func (s *MockState) GetConnection(address string) (*ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.connections[address]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// GetLastConnection returns the most recent connection
func (s *MockState) GetLastConnection() (*ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *ConnectionRecord
	for _, rec := range s.connections {
		if last == nil || rec.LastSuccessAt.After(last.LastSuccessAt) {
			last = rec
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

// Close closes the mock state (no-op for in-memory)
func (s *MockState) Close() error {
	return nil
}

// Test helpers

// SetGetConfigError sets an error to return from GetConfig
func (s *MockState) SetGetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getConfigErr = err
}

// SetSetConfigError sets an error to return from SetConfig
func (s *MockState) SetSetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigErr = err
}

// SetSaveConnectionError sets an error to return from SaveSuccessfulConnection
func (s *MockState) SetSaveConnectionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveConnectionErr = err
}
