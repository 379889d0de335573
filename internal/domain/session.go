package domain

import (
	"fmt"
	"time"
)

// Phase is the coarse position of a session in its round/rest cycle.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseWorking           Phase = "working"
	PhaseResting           Phase = "resting"
	PhaseAwaitingIntensity Phase = "awaiting_intensity"
	PhaseFinished          Phase = "finished"
)

// Timed reports whether the phase consumes clock ticks.
func (p Phase) Timed() bool {
	return p == PhaseWorking || p == PhaseResting
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseWorking, PhaseResting, PhaseAwaitingIntensity, PhaseFinished:
		return true
	}
	return false
}

// SessionConfig is fixed at session setup and never mutated afterwards.
type SessionConfig struct {
	RoundCount           int            `json:"round_count"`
	RoundDurationSeconds int            `json:"round_duration_seconds"`
	RestDurationSeconds  int            `json:"rest_duration_seconds"`
	RoundFocusLabels     map[int]string `json:"round_focus_labels,omitempty"` // 0-based round index -> label
	Scale                Scale          `json:"scale"`
}

// Validate checks the bounds a session needs to run.
func (c SessionConfig) Validate() error {
	if c.RoundCount < 1 {
		return fmt.Errorf("%w: round count must be at least 1", ErrInvalidConfig)
	}
	if c.RoundDurationSeconds < 1 {
		return fmt.Errorf("%w: round duration must be at least 1 second", ErrInvalidConfig)
	}
	if c.RestDurationSeconds < 0 {
		return fmt.Errorf("%w: rest duration cannot be negative", ErrInvalidConfig)
	}
	if !c.Scale.Valid() {
		return fmt.Errorf("%w: unknown intensity scale %q", ErrInvalidConfig, c.Scale)
	}
	for idx := range c.RoundFocusLabels {
		if idx < 0 || idx >= c.RoundCount {
			return fmt.Errorf("%w: focus label for round index %d out of range", ErrInvalidConfig, idx)
		}
	}
	return nil
}

// FocusLabel returns the label for a 1-indexed round, or "" when none is set.
func (c SessionConfig) FocusLabel(round int) string {
	return c.RoundFocusLabels[round-1]
}

// PlannedSeconds is the full configured length of the session, without the trailing rest.
func (c SessionConfig) PlannedSeconds() int {
	if c.RoundCount < 1 {
		return 0
	}
	return c.RoundCount*c.RoundDurationSeconds + (c.RoundCount-1)*c.RestDurationSeconds
}

// SessionState is owned by the state machine; everything else receives copies.
type SessionState struct {
	Phase                Phase             `json:"phase"`
	CurrentRound         int               `json:"current_round"` // 1-indexed, 0 while idle
	TimeRemainingSeconds int               `json:"time_remaining_seconds"`
	IsRunning            bool              `json:"is_running"`
	VoiceEnabled         bool              `json:"voice_enabled"`
	IntensityByRound     map[int]Intensity `json:"intensity_by_round,omitempty"` // 0-based round index
	StartedAt            time.Time         `json:"started_at,omitzero"`
	LastTickAt           time.Time         `json:"last_tick_at,omitzero"`
	FinishedAt           time.Time         `json:"finished_at,omitzero"`
}

// NewSessionState returns the idle state a fresh session starts from.
func NewSessionState(voiceEnabled bool) SessionState {
	return SessionState{
		Phase:        PhaseIdle,
		VoiceEnabled: voiceEnabled,
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s SessionState) Clone() SessionState {
	out := s
	if s.IntensityByRound != nil {
		out.IntensityByRound = make(map[int]Intensity, len(s.IntensityByRound))
		for k, v := range s.IntensityByRound {
			out.IntensityByRound[k] = v
		}
	}
	return out
}

// Started reports whether the first round was ever entered.
func (s SessionState) Started() bool {
	return !s.StartedAt.IsZero()
}

// RoundsCompleted counts rounds that have a recorded intensity score.
func (s SessionState) RoundsCompleted() int {
	return len(s.IntensityByRound)
}

// CheckInvariants validates a state against its config. Restored snapshots that fail this
// are treated as corrupt.
func (s SessionState) CheckInvariants(cfg SessionConfig) error {
	if !s.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	if s.TimeRemainingSeconds < 0 {
		return fmt.Errorf("negative time remaining %d", s.TimeRemainingSeconds)
	}
	switch s.Phase {
	case PhaseIdle:
		if s.CurrentRound != 0 {
			return fmt.Errorf("idle session at round %d", s.CurrentRound)
		}
		return nil
	case PhaseWorking:
		if s.TimeRemainingSeconds > cfg.RoundDurationSeconds {
			return fmt.Errorf("time remaining %d exceeds round duration %d", s.TimeRemainingSeconds, cfg.RoundDurationSeconds)
		}
	case PhaseResting:
		if s.TimeRemainingSeconds > cfg.RestDurationSeconds {
			return fmt.Errorf("time remaining %d exceeds rest duration %d", s.TimeRemainingSeconds, cfg.RestDurationSeconds)
		}
	}
	if s.Phase != PhaseFinished && (s.CurrentRound < 1 || s.CurrentRound > cfg.RoundCount) {
		return fmt.Errorf("round %d outside 1..%d", s.CurrentRound, cfg.RoundCount)
	}
	if s.CurrentRound > cfg.RoundCount {
		return fmt.Errorf("round %d exceeds round count %d", s.CurrentRound, cfg.RoundCount)
	}
	for idx, v := range s.IntensityByRound {
		if idx < 0 || idx >= cfg.RoundCount {
			return fmt.Errorf("intensity for round index %d out of range", idx)
		}
		if !v.Valid() {
			return fmt.Errorf("invalid intensity %+v for round index %d", v, idx)
		}
	}
	return nil
}
