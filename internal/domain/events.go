package domain

import "time"

// StateEvent is emitted to observers after every accepted transition.
type StateEvent struct {
	Type          string `json:"type"` // "state"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	Reason        string `json:"reason"` // command or "tick", "intensity", "restore"
	Phase         Phase  `json:"phase"`
	Round         int    `json:"round"`
	RoundCount    int    `json:"round_count"`
	Remaining     int    `json:"remaining"`
	Running       bool   `json:"running"`
	VoiceEnabled  bool   `json:"voice_enabled"`
	Focus         string `json:"focus,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// NewStateEvent renders the observable view of a state.
func NewStateEvent(sessionID, reason string, cfg SessionConfig, st SessionState, at time.Time) *StateEvent {
	return &StateEvent{
		Type:          "state",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Reason:        reason,
		Phase:         st.Phase,
		Round:         st.CurrentRound,
		RoundCount:    cfg.RoundCount,
		Remaining:     st.TimeRemainingSeconds,
		Running:       st.IsRunning,
		VoiceEnabled:  st.VoiceEnabled,
		Focus:         cfg.FocusLabel(st.CurrentRound),
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
}

// CueEvent mirrors a dispatched cue for observers that cannot play audio themselves.
type CueEvent struct {
	Type          string `json:"type"` // "cue"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	Cue           string `json:"cue"` // round_start, round_end, countdown, session_end
	Round         int    `json:"round"`
	Countdown     int    `json:"countdown,omitempty"`
	Phrase        string `json:"phrase,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Notice is a non-blocking, user-visible message (voice disabled, save retry, ...).
type Notice struct {
	Type          string `json:"type"` // "notice"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id,omitempty"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// NewNotice builds a notice stamped at at.
func NewNotice(sessionID, code, message string, at time.Time) *Notice {
	return &Notice{
		Type:          "notice",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Code:          code,
		Message:       message,
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
}
