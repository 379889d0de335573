package tmux

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

const rule = "────────────────────────────────────────"

// paneCommand runs a tmux command against the mirrored pane. Callers hold m.mu.
func (m *Manager) paneCommand(args ...string) error {
	if m.pane == "" {
		return ErrNoPaneAvailable
	}
	full := append([]string{args[0], "-t", m.pane}, args[1:]...)
	if _, err := m.tmux.Command(full...); err != nil {
		return fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return nil
}

// ClearPane wipes the visible screen and the scrollback of the pane.
func (m *Manager) ClearPane() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cmd := range [][]string{
		{"send-keys", "-R"},
		{"clear-history"},
		{"send-keys", "clear", "Enter"},
	} {
		if err := m.paneCommand(cmd...); err != nil {
			return err
		}
	}
	return nil
}

// WriteSessionBanner starts the pane over with the session plan and id.
func (m *Manager) WriteSessionBanner(sessionID, plan string, at time.Time) error {
	if err := m.ClearPane(); err != nil {
		return err
	}
	return m.WriteLines([]string{
		rule,
		"rounds · " + plan,
		fmt.Sprintf("session %s · %s", sessionID, at.Format("Mon 15:04")),
		rule,
	})
}

// WriteLine echoes one line into the pane.
func (m *Manager) WriteLine(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paneCommand("send-keys", "echo "+quote(line), "Enter")
}

// WriteLines writes lines in order, stopping at the first failure.
func (m *Manager) WriteLines(lines []string) error {
	for _, line := range lines {
		if err := m.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// quote wraps s in single quotes for the pane's shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Writer forwards complete lines to the pane; a trailing partial line waits for Flush.
type Writer struct {
	manager *Manager
	partial []byte
}

var _ io.Writer = (*Writer)(nil)

// NewWriter creates a writer over manager.
func NewWriter(manager *Manager) *Writer {
	return &Writer{manager: manager}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(w.partial[:i])
		w.partial = w.partial[i+1:]
		if line == "" {
			continue
		}
		if err := w.manager.WriteLine(line); err != nil {
			return 0, err
		}
	}
}

// Flush writes any partial line still buffered.
func (w *Writer) Flush() error {
	if len(w.partial) == 0 {
		return nil
	}
	line := string(w.partial)
	w.partial = w.partial[:0]
	return w.manager.WriteLine(line)
}
