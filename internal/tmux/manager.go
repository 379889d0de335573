// Package tmux mirrors a running session into a detached tmux session so it can be
// watched from another terminal or a status bar.
package tmux

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GianlucaP106/gotmux/gotmux"
)

var (
	ErrNoPaneAvailable = errors.New("tmux pane not available")
	ErrNoSessionName   = errors.New("tmux session name is required")
)

// Commander runs raw tmux commands. *gotmux.Tmux satisfies it.
type Commander interface {
	Command(args ...string) (string, error)
}

// Config names the tmux session to mirror into.
type Config struct {
	SessionName string
	// KillOnClose removes the tmux session when the mirror stops.
	KillOnClose bool
}

// Manager owns one detached tmux session.
type Manager struct {
	mu     sync.Mutex
	tmux   Commander
	config Config
	pane   string
}

// NewManager connects to the local tmux server.
func NewManager(cfg Config) (*Manager, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("tmux unavailable: %w", err)
	}
	return NewManagerWith(t, cfg)
}

// NewManagerWith uses an explicit commander.
func NewManagerWith(c Commander, cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.SessionName) == "" {
		return nil, ErrNoSessionName
	}
	return &Manager{tmux: c, config: cfg}, nil
}

// SessionName is the tmux session being written to.
func (m *Manager) SessionName() string { return m.config.SessionName }

// Setup creates the detached session unless it already exists.
func (m *Manager) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.config.SessionName
	if _, err := m.tmux.Command("has-session", "-t", name); err != nil {
		if _, err := m.tmux.Command("new-session", "-d", "-s", name); err != nil {
			return fmt.Errorf("failed to create tmux session %s: %w", name, err)
		}
	}
	m.pane = fmt.Sprintf("%s:0.0", name)
	return nil
}

// SetStatus shows text in the session's status bar.
func (m *Manager) SetStatus(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == "" {
		return ErrNoPaneAvailable
	}
	_, err := m.tmux.Command("set-option", "-t", m.config.SessionName, "status-right", escapeFormat(text))
	return err
}

// Close detaches from the session, killing it when configured to.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == "" {
		return nil
	}
	m.pane = ""
	if !m.config.KillOnClose {
		return nil
	}
	_, err := m.tmux.Command("kill-session", "-t", m.config.SessionName)
	return err
}

// escapeFormat keeps tmux from expanding #{...} sequences in user text.
func escapeFormat(s string) string {
	return strings.ReplaceAll(s, "#", "##")
}
