package ui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/aeolun/queueview/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
)

// HTMLOpener shows the HTML file at path to the user
type HTMLOpener func(path string) error

// HTMLOpenedMsg reports the result of opening a mail's HTML body
type HTMLOpenedMsg struct {
	ID   protocol.MessageID
	Path string
	Err  error
}

// openInBrowser hands path to the platform's default handler
func openInBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// writeHTML stores body in a new file under dir (the system temp dir when
// empty). The file is left behind for the browser to read.
func writeHTML(dir string, body string) (string, error) {
	f, err := os.CreateTemp(dir, "queueview-*.html")
	if err != nil {
		return "", fmt.Errorf("create html file: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write html file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write html file: %w", err)
	}
	return f.Name(), nil
}

// openHTMLCmd writes the body and opens it off the update loop
func openHTMLCmd(open HTMLOpener, dir string, id protocol.MessageID, body string) tea.Cmd {
	return func() tea.Msg {
		path, err := writeHTML(dir, body)
		if err == nil {
			err = open(path)
		}
		return HTMLOpenedMsg{ID: id, Path: path, Err: err}
	}
}
