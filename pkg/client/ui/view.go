package ui

import (
	"fmt"
	"strings"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/charmbracelet/lipgloss"
)

// View renders the queue
func (m Model) View() string {
	// Don't render until we have dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var parts []string
	parts = append(parts, m.renderHeader())
	parts = append(parts, m.renderTable())
	if m.showDetail {
		parts = append(parts, detailBoxStyle.Width(m.width-2).Render(m.detail.View()))
	}
	parts = append(parts, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Mail queue")
	count := mutedStyle.Render(fmt.Sprintf("(%d)", len(m.ids)))
	return title + " " + count
}

// renderTable renders one row per queued mail: recipients and subject
func (m Model) renderTable() string {
	if len(m.ids) == 0 {
		return mutedStyle.Render("Queue is empty")
	}

	recipientWidth := m.width * 2 / 5
	if recipientWidth < 10 {
		recipientWidth = 10
	}
	subjectWidth := m.width - recipientWidth - 4
	if subjectWidth < 10 {
		subjectWidth = 10
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("  %-*s %s", recipientWidth, "Recipients", "Subject")))

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		id := m.ids[i]
		rec, _ := m.replica.Get(id)
		s := rec.Summary()

		line := fmt.Sprintf("%-*s %s",
			recipientWidth, truncate(strings.Join(s.To, ", "), recipientWidth),
			truncate(s.Subject, subjectWidth))

		sb.WriteString("\n")
		if i == m.cursor {
			sb.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			sb.WriteString(rowStyle.Render("  " + line))
		}
	}
	return sb.String()
}

// visibleRange keeps the cursor on screen when the queue is longer than
// the space left by the header, status bar and detail pane
func (m Model) visibleRange() (int, int) {
	rows := m.height - 4
	if m.showDetail {
		rows -= m.detail.Height + 2
	}
	if rows < 1 {
		rows = 1
	}
	if len(m.ids) <= rows {
		return 0, len(m.ids)
	}

	start := m.cursor - rows/2
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(m.ids) {
		end = len(m.ids)
		start = end - rows
	}
	return start, end
}

func (m Model) renderStatusBar() string {
	var conn string
	switch m.connectionState {
	case StateConnected:
		conn = lipgloss.NewStyle().Foreground(SuccessColor).Render("● connected")
		if m.sessionID != "" {
			conn += mutedStyle.Render(" " + shortSession(m.sessionID))
		}
	case StateReconnecting:
		conn = m.spinner.View() + lipgloss.NewStyle().Foreground(WarningColor).
			Render(fmt.Sprintf(" reconnecting (attempt %d)", m.reconnectAttempt))
	default:
		conn = lipgloss.NewStyle().Foreground(ErrorColor).Render("○ disconnected")
	}

	help := mutedStyle.Render("j/k move · enter details · h html · d delivered · D legacy · x remove · q quit")
	status := conn + "  " + help
	if m.statusMessage != "" {
		status += "\n" + flashStyle.Render(m.statusMessage)
	}
	return status
}

// buildDetailContent renders one mail for the detail pane. Fields shown in
// their own section are left out of the JSON dump.
func buildDetailContent(id protocol.MessageID, rec protocol.Record, width int) string {
	s := rec.Summary()

	var sb strings.Builder
	writeField := func(label, value string) {
		sb.WriteString(labelStyle.Render(label+":") + " " + value + "\n")
	}

	writeField("ID", id)
	writeField("From", strings.Join(s.From, ", "))
	writeField("To", strings.Join(s.To, ", "))
	writeField("Subject", s.Subject)

	if text := rec.Text("text"); text != "" {
		sb.WriteString("\n")
		if width > 0 {
			text = lipgloss.NewStyle().Width(width).Render(text)
		}
		sb.WriteString(text + "\n")
	}
	if s.HasHTML {
		sb.WriteString("\n" + mutedStyle.Render("(has HTML body, h opens it)") + "\n")
	}

	sb.WriteString("\n" + rec.Extra())
	return sb.String()
}

// truncate shortens s to limit runes, marking the cut with an ellipsis
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	if limit == 1 {
		return string(r[:1])
	}
	return string(r[:limit-1]) + "…"
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
