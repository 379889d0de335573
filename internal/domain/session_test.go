package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() SessionConfig {
	return SessionConfig{
		RoundCount:           3,
		RoundDurationSeconds: 180,
		RestDurationSeconds:  60,
		RoundFocusLabels:     map[int]string{0: "jab-cross", 2: "body shots"},
		Scale:                ScaleNumeric,
	}
}

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SessionConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*SessionConfig) {}},
		{name: "zero rest allowed", mutate: func(c *SessionConfig) { c.RestDurationSeconds = 0 }},
		{name: "no rounds", mutate: func(c *SessionConfig) { c.RoundCount = 0 }, wantErr: true},
		{name: "zero round duration", mutate: func(c *SessionConfig) { c.RoundDurationSeconds = 0 }, wantErr: true},
		{name: "negative rest", mutate: func(c *SessionConfig) { c.RestDurationSeconds = -1 }, wantErr: true},
		{name: "unknown scale", mutate: func(c *SessionConfig) { c.Scale = "stars" }, wantErr: true},
		{name: "label out of range", mutate: func(c *SessionConfig) { c.RoundFocusLabels = map[int]string{3: "x"} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFocusLabelIsOneIndexed(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "jab-cross", cfg.FocusLabel(1))
	assert.Equal(t, "", cfg.FocusLabel(2))
	assert.Equal(t, "body shots", cfg.FocusLabel(3))
	assert.Equal(t, 3*180+2*60, cfg.PlannedSeconds())
}

func TestCheckInvariants(t *testing.T) {
	cfg := validConfig()

	ok := SessionState{Phase: PhaseWorking, CurrentRound: 2, TimeRemainingSeconds: 180}
	assert.NoError(t, ok.CheckInvariants(cfg))

	tooLong := SessionState{Phase: PhaseResting, CurrentRound: 1, TimeRemainingSeconds: 61}
	assert.Error(t, tooLong.CheckInvariants(cfg))

	pastLast := SessionState{Phase: PhaseWorking, CurrentRound: 4, TimeRemainingSeconds: 10}
	assert.Error(t, pastLast.CheckInvariants(cfg))

	badScore := SessionState{
		Phase:            PhaseAwaitingIntensity,
		CurrentRound:     1,
		IntensityByRound: map[int]Intensity{0: {Scale: ScaleNumeric, Value: 9}},
	}
	assert.Error(t, badScore.CheckInvariants(cfg))

	endedBeforeStart := SessionState{Phase: PhaseFinished}
	assert.NoError(t, endedBeforeStart.CheckInvariants(cfg))
}

func TestCloneDoesNotShareIntensityMap(t *testing.T) {
	st := SessionState{IntensityByRound: map[int]Intensity{0: {Scale: ScaleNumeric, Value: 3}}}
	cp := st.Clone()
	cp.IntensityByRound[1] = Intensity{Scale: ScaleNumeric, Value: 5}

	assert.Len(t, st.IntensityByRound, 1)
	assert.Len(t, cp.IntensityByRound, 2)
}

func TestIntensity(t *testing.T) {
	in, err := NewIntensity(ScaleCategorical, 3)
	require.NoError(t, err)
	assert.Equal(t, "high", in.String())
	assert.InDelta(t, 1.0, in.Normalized(), 0.0001)

	_, err = NewIntensity(ScaleCategorical, 4)
	assert.ErrorIs(t, err, ErrInvalidScore)

	num, err := NewIntensity(ScaleNumeric, 4)
	require.NoError(t, err)
	assert.Equal(t, "4", num.String())
	assert.InDelta(t, 0.75, num.Normalized(), 0.0001)
}

func TestSnapshotRoundTrip(t *testing.T) {
	started := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	st := SessionState{
		Phase:                PhaseResting,
		CurrentRound:         1,
		TimeRemainingSeconds: 42,
		IsRunning:            true,
		IntensityByRound:     map[int]Intensity{0: {Scale: ScaleNumeric, Value: 4}},
		StartedAt:            started,
		LastTickAt:           started.Add(200 * time.Second),
	}
	snap := NewSnapshot("sess-1", validConfig(), st, started.Add(201*time.Second))
	require.NoError(t, snap.Validate())

	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, snap.State, decoded.State)
	assert.Equal(t, snap.Config, decoded.Config)
}

func TestSnapshotStaleness(t *testing.T) {
	saved := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	snap := NewSnapshot("s", validConfig(), NewSessionState(true), saved)

	assert.False(t, snap.IsStale(saved.Add(5*time.Hour), 6*time.Hour))
	assert.True(t, snap.IsStale(saved.Add(6*time.Hour), 6*time.Hour))
}

func TestSnapshotValidateRejectsForeignDocuments(t *testing.T) {
	snap := NewSnapshot("s", validConfig(), NewSessionState(false), time.Now())
	snap.Type = "resume_state"
	assert.ErrorIs(t, snap.Validate(), ErrCorruptSnapshot)

	snap = NewSnapshot("", validConfig(), NewSessionState(false), time.Now())
	assert.ErrorIs(t, snap.Validate(), ErrCorruptSnapshot)
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DurationMinutes(start, start.Add(29*time.Second)))
	assert.Equal(t, 1, DurationMinutes(start, start.Add(30*time.Second)))
	assert.Equal(t, 12, DurationMinutes(start, start.Add(11*time.Minute+40*time.Second)))
	assert.Equal(t, 0, DurationMinutes(start, start.Add(-time.Minute)))
}

func TestNewStateEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	st := SessionState{Phase: PhaseWorking, CurrentRound: 1, TimeRemainingSeconds: 90, IsRunning: true}
	ev := NewStateEvent("s1", "tick", validConfig(), st, at)

	assert.Equal(t, "state", ev.Type)
	assert.Equal(t, SchemaVersion, ev.SchemaVersion)
	assert.Equal(t, "jab-cross", ev.Focus)
	assert.Equal(t, 3, ev.RoundCount)
	assert.Equal(t, "2026-03-01T18:00:00Z", ev.Timestamp)
}
