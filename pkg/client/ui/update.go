package ui

import (
	"fmt"
	"strings"

	"github.com/aeolun/queueview/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeDetail()
		m.updateDetail()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case ReplicaChangedMsg:
		m.refresh()
		return m, listenForReplicaChanges(m.changes)

	case ConnectedMsg:
		m.connectionState = StateConnected
		m.reconnectAttempt = 0
		m.sessionID = msg.SessionID
		m.logger.Debug().Str("session", msg.SessionID).Msg("ui: connected")
		return m, listenForStateChanges(m.conn)

	case DisconnectedMsg:
		m.connectionState = StateDisconnected
		m.logger.Debug().Err(msg.Err).Msg("ui: disconnected")
		return m, listenForStateChanges(m.conn)

	case ReconnectingMsg:
		m.connectionState = StateReconnecting
		m.reconnectAttempt = msg.Attempt
		return m, listenForStateChanges(m.conn)

	case HTMLOpenedMsg:
		if msg.Err != nil {
			m.logger.Warn().Err(msg.Err).Str("id", msg.ID).Msg("ui: failed to open html body")
			return m, m.setStatus(fmt.Sprintf("Failed to open HTML body of %s: %v", msg.ID, msg.Err))
		}
		return m, m.setStatus(fmt.Sprintf("Opened HTML body of %s (%s)", msg.ID, msg.Path))

	case ClearStatusMsg:
		if msg.Version == m.statusVersion {
			m.statusMessage = ""
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()

	case "j", "down":
		if m.cursor < len(m.ids)-1 {
			m.cursor++
			m.updateDetail()
			m.detail.GotoTop()
			m.saveSelection()
		}
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.updateDetail()
			m.detail.GotoTop()
			m.saveSelection()
		}
		return m, nil

	case "g", "home":
		m.cursor = 0
		m.updateDetail()
		m.saveSelection()
		return m, nil

	case "G", "end":
		if len(m.ids) > 0 {
			m.cursor = len(m.ids) - 1
		}
		m.updateDetail()
		m.saveSelection()
		return m, nil

	case "enter":
		if _, ok := m.selected(); ok {
			m.showDetail = !m.showDetail
			m.detail.GotoTop()
			m.saveDetail()
		}
		return m, nil

	case "esc":
		if m.showDetail {
			m.showDetail = false
			m.saveDetail()
		}
		return m, nil

	case "d":
		return m.dispatch("delivered webhook", m.dispatcher.MarkDelivered)

	case "D":
		return m.dispatch("legacy delivered webhook", m.dispatcher.MarkDeliveredLegacy)

	case "x":
		return m.dispatch("remove", m.dispatcher.Remove)

	case "h":
		return m.openSelectedHTML()
	}

	// pgup/pgdown and friends scroll the detail pane
	if m.showDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

// dispatch sends an intent for the selected mail. The list itself only
// changes when the server answers with an event.
func (m Model) dispatch(label string, send func(protocol.MessageID) bool) (tea.Model, tea.Cmd) {
	id, ok := m.selected()
	if !ok {
		return m, nil
	}

	if !send(id) {
		return m, m.setStatus(fmt.Sprintf("Not connected: %s for %s dropped", label, id))
	}
	return m, m.setStatus(fmt.Sprintf("Sent %s for %s", label, id))
}

// openSelectedHTML shows the selected mail's HTML body outside the terminal
func (m Model) openSelectedHTML() (tea.Model, tea.Cmd) {
	id, ok := m.selected()
	if !ok {
		return m, nil
	}
	rec, _ := m.replica.Get(id)
	body := strings.Join(rec.Strings("html"), "\n")
	if body == "" {
		return m, m.setStatus(fmt.Sprintf("No HTML body for %s", id))
	}
	return m, openHTMLCmd(m.openHTML, m.htmlDir, id, body)
}

func (m *Model) resizeDetail() {
	// header, table border, status and help lines
	height := m.height/2 - 2
	if height < 3 {
		height = 3
	}
	m.detail.Width = m.width - 4
	m.detail.Height = height
}
