package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vburojevic/rounds/internal/tui"
)

// UICmd runs a session in the full-screen timer
type UICmd struct {
	SessionFlags `embed:""`

	Photo string `help:"Proof photo attached to the saved session" type:"existingfile"`
}

// Run executes the UI command
func (c *UICmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	host, deps, err := openHost(ctx, globals, &c.SessionFlags, "ui")
	if err != nil {
		return err
	}
	defer deps.Close()
	defer closeHost(globals, host)

	runErr := make(chan error, 1)
	go func() { runErr <- host.Run(ctx) }()

	p := tea.NewProgram(tui.New(host), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-runErr
		return outputErrorCommon(globals, "UI_FAILED", err.Error())
	}

	// Quitting the screen mid-session leaves the snapshot for the next run.
	cancel()
	if err := <-runErr; err != nil {
		return outputErrorCommon(globals, "SESSION_FAILED", err.Error())
	}
	_, err = finishSession(globals, host, c.Photo)
	return err
}
