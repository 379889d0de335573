package domain

import (
	"fmt"
	"time"
)

// SchemaVersion is stamped on every persisted or emitted document.
const SchemaVersion = 1

// Snapshot is the durable form of a session, fully replaced on every save.
type Snapshot struct {
	Type          string        `json:"type"` // "snapshot"
	SchemaVersion int           `json:"schemaVersion"`
	SessionID     string        `json:"session_id"`
	Config        SessionConfig `json:"config"`
	State         SessionState  `json:"state"`
	SavedAt       time.Time     `json:"saved_at"`
}

// NewSnapshot copies state so later machine mutations never leak into a pending write.
func NewSnapshot(sessionID string, cfg SessionConfig, st SessionState, savedAt time.Time) *Snapshot {
	return &Snapshot{
		Type:          "snapshot",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Config:        cfg,
		State:         st.Clone(),
		SavedAt:       savedAt.UTC(),
	}
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (s *Snapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.SavedAt) >= maxAge
}

// Validate rejects snapshots that cannot be resumed safely.
func (s *Snapshot) Validate() error {
	if s.Type != "snapshot" {
		return fmt.Errorf("%w: unexpected type %q", ErrCorruptSnapshot, s.Type)
	}
	if s.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrCorruptSnapshot, s.SchemaVersion)
	}
	if s.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrCorruptSnapshot)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := s.State.CheckInvariants(s.Config); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return nil
}
