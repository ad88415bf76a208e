package ui

import (
	"github.com/aeolun/queueview/pkg/client"
	"github.com/aeolun/queueview/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// NewTestModel creates a connected Model over a mock connection
func NewTestModel() (Model, *client.MockConnection) {
	conn := client.NewMockConnection("ws://localhost:8080/ws")
	conn.SetConnected(true)
	return NewModel(conn, client.NewMockState(), zerolog.Nop()), conn
}

// NewTestModelWithState creates a connected Model that keeps its view
// preferences in state
func NewTestModelWithState(state *client.MockState) (Model, *client.MockConnection) {
	conn := client.NewMockConnection("ws://localhost:8080/ws")
	conn.SetConnected(true)
	return NewModel(conn, state, zerolog.Nop()), conn
}

// SetupTestModelWithDimensions creates a test model with window dimensions set
func SetupTestModelWithDimensions(width, height int) (Model, *client.MockConnection) {
	m, conn := NewTestModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return updated.(Model), conn
}

// CreateTestRecord creates a record shaped like the mock server's form
// capture
func CreateTestRecord(to, subject string) protocol.Record {
	return protocol.Record{
		"from":    []any{"Sender <sender@example.com>"},
		"to":      []any{to},
		"subject": []any{subject},
		"text":    []any{"Hello " + to},
	}
}

// applyAndNotify mutates the replica and feeds the model the resulting
// change message, the way the listen command would
func applyAndNotify(m Model, mutate func()) Model {
	mutate()
	var last tea.Model = m
	for {
		select {
		case c := <-m.changes:
			last, _ = last.(Model).Update(ReplicaChangedMsg{Change: c})
		default:
			return last.(Model)
		}
	}
}

func pressKey(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}
