package ui

import (
	"strconv"
	"time"

	"github.com/aeolun/queueview/pkg/client"
	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/aeolun/queueview/pkg/replica"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// ConnectionState represents the connection status
type ConnectionState int

const (
	StateConnected ConnectionState = iota
	StateDisconnected
	StateReconnecting
)

// Keys of the view preferences kept in the state database
const (
	configSelectedID = "ui_selected_id"
	configShowDetail = "ui_show_detail"
)

// Model is the terminal view of the queue. It only reads the replica and
// hands user intents to the dispatcher.
type Model struct {
	// Connection and data
	conn        client.ConnectionInterface
	state       client.StateInterface
	dispatcher  *client.Dispatcher
	replica     *replica.Replica
	changes     <-chan replica.Change
	unsubscribe func()
	logger      zerolog.Logger

	connectionState  ConnectionState
	reconnectAttempt int
	sessionID        string

	// Queue
	ids        []protocol.MessageID // sorted
	cursor     int
	showDetail bool
	detail     viewport.Model

	openHTML HTMLOpener
	htmlDir  string // "" means the system temp dir

	// Saved selection, applied once the mail shows up in the queue
	restoreID     protocol.MessageID
	restoreDetail bool

	// UI state
	spinner       spinner.Model
	width         int
	height        int
	statusMessage string
	statusVersion uint64
}

// NewModel creates the queue view over conn. The model subscribes to the
// connection's replica immediately so no change is missed before Init.
// The last selected mail and the detail pane are restored from state.
func NewModel(conn client.ConnectionInterface, state client.StateInterface, logger zerolog.Logger) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	rep := conn.Replica()
	changes, unsubscribe := rep.Subscribe()

	m := Model{
		conn:        conn,
		state:       state,
		dispatcher:  client.NewDispatcher(conn),
		replica:     rep,
		changes:     changes,
		unsubscribe: unsubscribe,
		logger:      logger,
		spinner:     s,
		detail:      viewport.New(0, 0),
		openHTML:    openInBrowser,
	}

	if conn.IsConnected() {
		m.connectionState = StateConnected
		m.sessionID = conn.SessionID()
	} else {
		m.connectionState = StateDisconnected
	}

	m.loadPreferences()
	m.refresh()
	return m
}

// loadPreferences reads the saved selection. A state error only costs the
// restore.
func (m *Model) loadPreferences() {
	id, err := m.state.GetConfig(configSelectedID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("ui: failed to load saved selection")
		return
	}
	m.restoreID = id

	detail, err := m.state.GetConfig(configShowDetail)
	if err != nil {
		m.logger.Warn().Err(err).Msg("ui: failed to load detail pane setting")
		return
	}
	m.restoreDetail = detail == "true"
}

// saveSelection persists the mail under the cursor
func (m *Model) saveSelection() {
	m.restoreID = ""
	id, ok := m.selected()
	if !ok {
		return
	}
	if err := m.state.SetConfig(configSelectedID, id); err != nil {
		m.logger.Warn().Err(err).Msg("ui: failed to save selection")
	}
}

// saveDetail persists whether the detail pane is open
func (m *Model) saveDetail() {
	m.restoreDetail = false
	if err := m.state.SetConfig(configShowDetail, strconv.FormatBool(m.showDetail)); err != nil {
		m.logger.Warn().Err(err).Msg("ui: failed to save detail pane setting")
	}
}

// Message types for bubbletea

// ReplicaChangedMsg is sent after every replica mutation
type ReplicaChangedMsg struct {
	Change replica.Change
}

// ConnectedMsg is sent when successfully connected or reconnected
type ConnectedMsg struct {
	SessionID string
}

// DisconnectedMsg is sent when connection is lost
type DisconnectedMsg struct {
	Err error
}

// ReconnectingMsg is sent when attempting to reconnect
type ReconnectingMsg struct {
	Attempt int
}

// ClearStatusMsg clears the status message after a timeout
type ClearStatusMsg struct {
	Version uint64 // Only clear if this matches current statusVersion
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForReplicaChanges(m.changes),
		listenForStateChanges(m.conn),
		m.spinner.Tick,
	)
}

// listenForReplicaChanges waits for the next replica change
func listenForReplicaChanges(changes <-chan replica.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-changes
		if !ok {
			return nil
		}
		return ReplicaChangedMsg{Change: c}
	}
}

// listenForStateChanges waits for the next connection state change
func listenForStateChanges(conn client.ConnectionInterface) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-conn.StateChanges()
		if !ok {
			return nil
		}
		switch update.State {
		case client.StateTypeConnected:
			return ConnectedMsg{SessionID: update.SessionID}
		case client.StateTypeDisconnected:
			return DisconnectedMsg{Err: update.Err}
		case client.StateTypeReconnecting:
			return ReconnectingMsg{Attempt: update.Attempt}
		}
		return nil
	}
}

// statusTimeout returns a command that clears the status after 3 seconds
func statusTimeout(version uint64) tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
		return ClearStatusMsg{Version: version}
	})
}

// setStatus sets the status message and returns the timeout command
func (m *Model) setStatus(message string) tea.Cmd {
	m.statusVersion++
	m.statusMessage = message
	return statusTimeout(m.statusVersion)
}

// refresh re-reads the replica and keeps the cursor on a valid row
func (m *Model) refresh() {
	m.ids = m.replica.IDs()
	if m.cursor >= len(m.ids) {
		m.cursor = len(m.ids) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if len(m.ids) == 0 {
		m.showDetail = false
	} else if m.restoreDetail {
		m.showDetail = true
		m.restoreDetail = false
	}
	if m.restoreID != "" {
		for i, id := range m.ids {
			if id == m.restoreID {
				m.cursor = i
				m.restoreID = ""
				break
			}
		}
	}
	m.updateDetail()
}

// selected returns the id under the cursor
func (m Model) selected() (protocol.MessageID, bool) {
	if len(m.ids) == 0 {
		return "", false
	}
	return m.ids[m.cursor], true
}

func (m *Model) updateDetail() {
	id, ok := m.selected()
	if !ok {
		m.detail.SetContent("")
		return
	}
	rec, ok := m.replica.Get(id)
	if !ok {
		m.detail.SetContent("")
		return
	}
	m.detail.SetContent(buildDetailContent(id, rec, m.detail.Width))
}

// quit releases the replica subscription
func (m *Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}
