package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/rounds/internal/domain"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(buf).Decode(&m))
	return m
}

func TestWriteErrorKeepsFirstHint(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewNDJSONWriter(buf).WriteError("NO_SESSION", "nothing to resume", "pass --fresh", "ignored"))

	m := decodeLine(t, buf)
	assert.Equal(t, "error", m["type"])
	assert.EqualValues(t, 1, m["schemaVersion"])
	assert.Equal(t, "NO_SESSION", m["code"])
	assert.Equal(t, "pass --fresh", m["hint"])
}

func TestWriteStateLine(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := domain.SessionConfig{RoundCount: 3, RoundDurationSeconds: 180, Scale: domain.ScaleNumeric}
	st := domain.SessionState{Phase: domain.PhaseWorking, CurrentRound: 2, TimeRemainingSeconds: 95, IsRunning: true}
	ev := domain.NewStateEvent("s-1", "tick", cfg, st, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, NewNDJSONWriter(buf).WriteState(ev))

	m := decodeLine(t, buf)
	assert.Equal(t, "state", m["type"])
	assert.Equal(t, "working", m["phase"])
	assert.EqualValues(t, 95, m["remaining"])
	assert.Equal(t, "2026-01-01T00:00:00Z", m["timestamp"])
}

func TestWriteRecordStampsType(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &domain.FinishedSession{ID: "r1", SessionID: "s1", DurationMinutes: 12}
	require.NoError(t, NewNDJSONWriter(buf).WriteRecord(rec))

	m := decodeLine(t, buf)
	assert.Equal(t, "record", m["type"])
	assert.EqualValues(t, 12, m["duration_minutes"])
	assert.Empty(t, rec.Type, "caller's record is not mutated")
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.StateEvent
		want string
	}{
		{"idle", domain.StateEvent{Phase: domain.PhaseIdle, RoundCount: 3}, "READY"},
		{"working", domain.StateEvent{Phase: domain.PhaseWorking, Round: 1, RoundCount: 3, Remaining: 65, Running: true, Focus: "jab"}, "WORK R1/3 01:05 · jab"},
		{"paused rest", domain.StateEvent{Phase: domain.PhaseResting, Round: 1, RoundCount: 3, Remaining: 9}, "REST R1/3 00:09 paused"},
		{"awaiting", domain.StateEvent{Phase: domain.PhaseAwaitingIntensity, Round: 2, RoundCount: 3, VoiceEnabled: true}, "RATE R2/3 [voice]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLine(&tt.ev))
		})
	}
}

func TestTextWriterThrottlesTicks(t *testing.T) {
	color.NoColor = true
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	w := NewTextWriter(out, errOut)

	require.NoError(t, w.WriteState(&domain.StateEvent{Reason: "tick", Phase: domain.PhaseWorking, Round: 1, RoundCount: 1, Remaining: 47, Running: true}))
	assert.Empty(t, out.String())

	require.NoError(t, w.WriteState(&domain.StateEvent{Reason: "tick", Phase: domain.PhaseWorking, Round: 1, RoundCount: 1, Remaining: 3, Running: true}))
	assert.Equal(t, "WORK R1/1 00:03\n", out.String())

	require.NoError(t, w.WriteError("BAD", "broken", "retry"))
	assert.Contains(t, errOut.String(), "Error [BAD]: broken (hint: retry)")
}

func TestTextWriterRecordListsScores(t *testing.T) {
	color.NoColor = true
	out := &bytes.Buffer{}
	rec := &domain.FinishedSession{
		DurationMinutes: 10, RoundCount: 3, RoundsCompleted: 2, AverageIntensity: 4.5,
		IntensityByRound: map[int]domain.Intensity{1: {Scale: domain.ScaleNumeric, Value: 5}, 0: {Scale: domain.ScaleNumeric, Value: 4}},
	}
	require.NoError(t, NewTextWriter(out, out).WriteRecord(rec))
	assert.Contains(t, out.String(), "10 min, 2/3 rounds, avg 4.5 (R1 4 · R2 5)")
}

func TestTableRendersRows(t *testing.T) {
	buf := &bytes.Buffer{}
	tbl := Table(buf, []string{"Name", "Rounds"})
	require.NoError(t, tbl.Append([]string{"boxing", "3"}))
	require.NoError(t, tbl.Render())
	assert.Contains(t, buf.String(), "boxing")
}
