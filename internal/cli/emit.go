package cli

import (
	"fmt"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
	"github.com/vburojevic/rounds/internal/output"
)

// emitEvent writes one runner event. Quiet mode keeps notices only.
func emitEvent(w output.Writer, ev engine.Event, quiet bool) error {
	switch {
	case ev.Notice != nil:
		return w.WriteNotice(ev.Notice)
	case quiet:
		return nil
	case ev.State != nil:
		return w.WriteState(ev.State)
	case ev.Cue != nil:
		return w.WriteCue(ev.Cue)
	}
	return nil
}

// planLine summarizes a session config, e.g. "3 x 03:00, 01:00 rest, numeric".
func planLine(cfg domain.SessionConfig) string {
	rest := "no rest"
	if cfg.RestDurationSeconds > 0 {
		rest = output.Clock(cfg.RestDurationSeconds) + " rest"
	}
	return fmt.Sprintf("%d x %s, %s, %s", cfg.RoundCount, output.Clock(cfg.RoundDurationSeconds), rest, cfg.Scale)
}
