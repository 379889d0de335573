package tmux

import (
	"context"

	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/engine"
	"github.com/vburojevic/rounds/internal/output"
)

// Mirror keeps the status bar in step with the session and echoes cues and notices into
// the pane until events closes or ctx is done. tmux failures are logged, never fatal.
func Mirror(ctx context.Context, m *Manager, events <-chan engine.Event, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var err error
			switch {
			case ev.State != nil:
				line := output.StatusLine(ev.State)
				if line == last {
					continue
				}
				last = line
				err = m.SetStatus(line)
			case ev.Cue != nil && ev.Cue.Phrase != "":
				err = m.WriteLine("♪ " + ev.Cue.Phrase)
			case ev.Notice != nil:
				err = m.WriteLine("! " + ev.Notice.Message)
			}
			if err != nil {
				logger.Debug("tmux mirror write failed", zap.Error(err))
			}
		}
	}
}
