package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/intensity"
	"github.com/vburojevic/rounds/internal/output"
	"github.com/vburojevic/rounds/internal/session"
	"github.com/vburojevic/rounds/internal/tmux"
)

const manualHelp = "start|s, pause|p, resume|r, skip|n, end|e, voice on|off, abandon"

// RunCmd hosts a session in the foreground, reading manual commands from stdin.
type RunCmd struct {
	SessionFlags `embed:""`

	Photo       string `help:"Proof photo attached to the saved session" type:"existingfile"`
	Tmux        bool   `help:"Mirror the session into a detached tmux session"`
	TmuxSession string `default:"rounds" help:"tmux session name used with --tmux"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host, deps, err := openHost(ctx, globals, &c.SessionFlags, "run")
	if err != nil {
		return err
	}
	defer deps.Close()
	defer closeHost(globals, host)

	logger := sessionLogger(globals, "run", host.ID())
	w := globals.Writer()
	events, unsubscribe := host.Subscribe(64)
	defer unsubscribe()

	var mgr *tmux.Manager
	if c.Tmux {
		if mgr, err = c.startTmux(ctx, globals, host, logger); err != nil {
			return err
		}
		defer func() { _ = mgr.Close() }()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- host.Run(ctx) }()
	go readManual(ctx, globals.Stdin, host, w, logger)

	for ev := range events {
		if err := emitEvent(w, ev, globals.Quiet); err != nil {
			logger.Debug("emit event", zap.Error(err))
		}
	}
	if err := <-runErr; err != nil {
		return outputErrorCommon(globals, "SESSION_FAILED", err.Error())
	}

	rec, err := finishSession(globals, host, c.Photo)
	if rec != nil && mgr != nil {
		pane := tmux.NewWriter(mgr)
		_ = output.NewTextWriter(pane, io.Discard).WriteRecord(rec)
		_ = pane.Flush()
	}
	return err
}

func (c *RunCmd) startTmux(ctx context.Context, globals *Globals, host *session.Host, logger *zap.Logger) (*tmux.Manager, error) {
	mgr, err := tmux.NewManager(tmux.Config{SessionName: c.TmuxSession})
	if err != nil {
		return nil, outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error(), "install tmux or drop --tmux")
	}
	if err := mgr.Setup(); err != nil {
		return nil, outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error(), "install tmux or drop --tmux")
	}
	if err := mgr.WriteSessionBanner(host.ID(), planLine(host.Config()), time.Now()); err != nil {
		logger.Debug("tmux banner", zap.Error(err))
	}

	events, unsubscribe := host.Subscribe(64)
	go func() {
		defer unsubscribe()
		tmux.Mirror(ctx, mgr, events, logger.Named("tmux"))
	}()
	globals.Debug("mirroring into tmux; attach with: tmux attach -t %s", mgr.SessionName())
	return mgr, nil
}

// readManual turns stdin lines into commands. Lines that are not commands are scored when
// the session is waiting for an intensity rating.
func readManual(ctx context.Context, in io.Reader, host *session.Host, w output.Writer, logger *zap.Logger) {
	if in == nil {
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if cmd, ok := session.ParseManual(line); ok {
			if _, err := host.Apply(ctx, cmd); err != nil {
				if errors.Is(err, command.ErrClosed) || ctx.Err() != nil {
					return
				}
				logger.Debug("manual command", zap.String("command", string(cmd.Kind)), zap.Error(err))
			}
			continue
		}
		if host.State().Phase == domain.PhaseAwaitingIntensity {
			if _, err := host.RecordIntensity(ctx, line); err != nil {
				if errors.Is(err, command.ErrClosed) || ctx.Err() != nil {
					return
				}
				_ = w.WriteError("INVALID_SCORE", err.Error(), intensity.Hint(host.Config().Scale))
			}
			continue
		}
		_ = w.WriteError("UNKNOWN_COMMAND", fmt.Sprintf("unknown command %q", line), manualHelp)
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("read stdin", zap.Error(err))
	}
}
