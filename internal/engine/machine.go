// Package engine owns the session state machine and the loop that feeds it.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/cue"
	"github.com/vburojevic/rounds/internal/domain"
)

// ErrWrongScale is returned when a score does not belong to the session's scale.
var ErrWrongScale = errors.New("intensity scale does not match session")

// Outcome describes what one command or tick did to the session.
type Outcome struct {
	Changed bool
	Cues    []cue.Event
	Err     error // only set for rejected intensity scores
}

// Machine is the single writer of SessionState. It is not safe for concurrent use; the
// Runner serializes every call.
type Machine struct {
	id        string
	cfg       domain.SessionConfig
	st        domain.SessionState
	abandoned bool
}

// New creates an idle session.
func New(id string, cfg domain.SessionConfig, voiceEnabled bool) (*Machine, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{id: id, cfg: cfg, st: domain.NewSessionState(voiceEnabled)}, nil
}

// Restore resumes a persisted session verbatim. Time spent while the process was gone is
// not subtracted.
func Restore(snap *domain.Snapshot) (*Machine, error) {
	if snap == nil {
		return nil, errors.New("snapshot is required")
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &Machine{id: snap.SessionID, cfg: snap.Config, st: snap.State.Clone()}, nil
}

func (m *Machine) ID() string { return m.id }
func (m *Machine) Config() domain.SessionConfig { return m.cfg }

// State returns a copy of the current state.
func (m *Machine) State() domain.SessionState { return m.st.Clone() }

// Abandoned reports whether the session was ended without a record.
func (m *Machine) Abandoned() bool { return m.abandoned }

// Snapshot captures the current state for persistence.
func (m *Machine) Snapshot(at time.Time) *domain.Snapshot {
	return domain.NewSnapshot(m.id, m.cfg, m.st, at)
}

// Apply executes one command. Commands that make no sense in the current phase are no-ops.
func (m *Machine) Apply(cmd command.Command) Outcome {
	at := cmd.At.UTC()
	switch cmd.Kind {
	case command.Start:
		return m.start(at)
	case command.Pause:
		if m.st.Phase.Timed() && m.st.IsRunning {
			m.st.IsRunning = false
			return Outcome{Changed: true}
		}
	case command.Resume:
		if m.st.Phase.Timed() && !m.st.IsRunning {
			m.st.IsRunning = true
			return Outcome{Changed: true}
		}
	case command.SkipForward:
		if m.st.Phase.Timed() && (m.st.TimeRemainingSeconds > 0 || !m.st.IsRunning) {
			m.st.TimeRemainingSeconds = 0
			m.st.IsRunning = true
			return Outcome{Changed: true}
		}
	case command.EndSession:
		return m.finish(at)
	case command.Abandon:
		if m.st.Phase == domain.PhaseFinished || m.abandoned {
			return Outcome{}
		}
		m.abandoned = true
		m.st.Phase = domain.PhaseFinished
		m.st.IsRunning = false
		m.st.FinishedAt = at
		return Outcome{Changed: true}
	case command.SetVoiceEnabled:
		if m.st.VoiceEnabled != cmd.Enabled {
			m.st.VoiceEnabled = cmd.Enabled
			return Outcome{Changed: true}
		}
	case command.RecordIntensity:
		return m.recordIntensity(cmd.Intensity, at)
	}
	return Outcome{}
}

// Tick consumes elapsed whole seconds. At most one phase boundary is crossed per tick; any
// extra elapsed time is dropped when the next phase starts at its full duration.
func (m *Machine) Tick(elapsed int, at time.Time) Outcome {
	if elapsed < 1 || !m.st.Phase.Timed() || !m.st.IsRunning {
		return Outcome{}
	}
	m.st.LastTickAt = at.UTC()

	before := m.st.TimeRemainingSeconds
	after := before - elapsed
	if after < 0 {
		after = 0
	}
	m.st.TimeRemainingSeconds = after
	if after > 0 {
		out := Outcome{Changed: true}
		if m.st.Phase == domain.PhaseWorking {
			if n, ok := crossedCountdown(before, after); ok {
				out.Cues = append(out.Cues, cue.Event{Kind: cue.Countdown, Round: m.st.CurrentRound, Seconds: n})
			}
		}
		return out
	}
	return m.boundary()
}

// crossedCountdown returns the lowest countdown mark reached when time moved from before to
// after (exclusive of before).
func crossedCountdown(before, after int) (int, bool) {
	best, found := 0, false
	for _, n := range cue.CountdownThresholds {
		if n >= after && n < before && (!found || n < best) {
			best, found = n, true
		}
	}
	return best, found
}

func (m *Machine) boundary() Outcome {
	round := m.st.CurrentRound
	switch m.st.Phase {
	case domain.PhaseWorking:
		m.st.Phase = domain.PhaseAwaitingIntensity
		m.st.TimeRemainingSeconds = 0
		m.st.IsRunning = false
		return Outcome{Changed: true, Cues: []cue.Event{{Kind: cue.RoundEnd, Round: round}}}
	case domain.PhaseResting:
		return Outcome{Changed: true, Cues: m.enterRound(round + 1)}
	}
	return Outcome{}
}

func (m *Machine) start(at time.Time) Outcome {
	switch {
	case m.st.Phase == domain.PhaseIdle:
		m.st.StartedAt = at
		return Outcome{Changed: true, Cues: m.enterRound(1)}
	case m.st.Phase.Timed() && !m.st.IsRunning:
		m.st.IsRunning = true
		return Outcome{Changed: true}
	}
	return Outcome{}
}

// enterRound starts round. A round that opens on a countdown mark announces it right away,
// since no tick will cross it.
func (m *Machine) enterRound(round int) []cue.Event {
	m.st.Phase = domain.PhaseWorking
	m.st.CurrentRound = round
	m.st.TimeRemainingSeconds = m.cfg.RoundDurationSeconds
	m.st.IsRunning = true
	cues := []cue.Event{{Kind: cue.RoundStart, Round: round, Focus: m.cfg.FocusLabel(round)}}
	if cue.IsCountdown(m.cfg.RoundDurationSeconds) {
		cues = append(cues, cue.Event{Kind: cue.Countdown, Round: round, Seconds: m.cfg.RoundDurationSeconds})
	}
	return cues
}

func (m *Machine) finish(at time.Time) Outcome {
	if m.st.Phase == domain.PhaseFinished {
		return Outcome{}
	}
	wasStarted := m.st.Started()
	m.st.Phase = domain.PhaseFinished
	m.st.IsRunning = false
	m.st.TimeRemainingSeconds = 0
	m.st.FinishedAt = at
	if !wasStarted {
		return Outcome{Changed: true}
	}
	return Outcome{Changed: true, Cues: []cue.Event{{Kind: cue.SessionEnd, Round: m.st.CurrentRound}}}
}

func (m *Machine) recordIntensity(score domain.Intensity, at time.Time) Outcome {
	if m.st.Phase != domain.PhaseAwaitingIntensity {
		return Outcome{}
	}
	if score.Scale != m.cfg.Scale {
		return Outcome{Err: fmt.Errorf("%w: got %s, session uses %s", ErrWrongScale, score.Scale, m.cfg.Scale)}
	}
	if !score.Valid() {
		return Outcome{Err: fmt.Errorf("%w: %d on %s scale", domain.ErrInvalidScore, score.Value, score.Scale)}
	}

	if m.st.IntensityByRound == nil {
		m.st.IntensityByRound = make(map[int]domain.Intensity, m.cfg.RoundCount)
	}
	m.st.IntensityByRound[m.st.CurrentRound-1] = score

	if m.st.CurrentRound >= m.cfg.RoundCount {
		return m.finish(at)
	}
	if m.cfg.RestDurationSeconds == 0 {
		return Outcome{Changed: true, Cues: m.enterRound(m.st.CurrentRound + 1)}
	}
	m.st.Phase = domain.PhaseResting
	m.st.TimeRemainingSeconds = m.cfg.RestDurationSeconds
	m.st.IsRunning = true
	return Outcome{Changed: true}
}
