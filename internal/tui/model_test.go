package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
)

type fakeSession struct {
	mu     sync.Mutex
	cfg    domain.SessionConfig
	state  domain.SessionState
	events chan engine.Event
	cmds   []command.Command
	scores []string
}

func newFake(st domain.SessionState) *fakeSession {
	return &fakeSession{
		cfg:    domain.SessionConfig{RoundCount: 3, RoundDurationSeconds: 180, RestDurationSeconds: 60, Scale: domain.ScaleNumeric, RoundFocusLabels: map[int]string{0: "jab-cross"}},
		state:  st,
		events: make(chan engine.Event, 4),
	}
}

func (f *fakeSession) ID() string { return "tui-session" }
func (f *fakeSession) Config() domain.SessionConfig { return f.cfg }
func (f *fakeSession) State() domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
func (f *fakeSession) Subscribe(int) (<-chan engine.Event, func()) { return f.events, func() {} }
func (f *fakeSession) Apply(_ context.Context, cmd command.Command) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return command.Result{Accepted: true, State: f.state}, nil
}
func (f *fakeSession) RecordIntensity(_ context.Context, input string) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, input)
	return command.Result{Accepted: true, State: f.state}, nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	if cmd != nil {
		next, _ = next.Update(cmd())
	}
	return next.(Model)
}

func TestSpaceStartsThenPauses(t *testing.T) {
	f := newFake(domain.NewSessionState(false))
	m := New(f)

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.Len(t, f.cmds, 1)
	assert.Equal(t, command.Start, f.cmds[0].Kind)

	f.state = domain.SessionState{Phase: domain.PhaseWorking, CurrentRound: 1, TimeRemainingSeconds: 180, IsRunning: true}
	next, _ := m.Update(eventMsg{State: &domain.StateEvent{}})
	m = next.(Model)
	press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Equal(t, command.Pause, f.cmds[1].Kind)
}

func TestKeysMapToCommands(t *testing.T) {
	f := newFake(domain.SessionState{Phase: domain.PhaseResting, CurrentRound: 1, TimeRemainingSeconds: 30, IsRunning: true})
	m := New(f)

	for _, k := range []string{"n", "v", "e", "x", "z"} {
		m = press(t, m, runes(k))
	}
	kinds := make([]command.Kind, 0, len(f.cmds))
	for _, c := range f.cmds {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []command.Kind{command.SkipForward, command.SetVoiceEnabled, command.EndSession, command.Abandon}, kinds)
	assert.True(t, f.cmds[1].Enabled)
}

func TestIntensityKeysOnlyWhileAwaiting(t *testing.T) {
	f := newFake(domain.SessionState{Phase: domain.PhaseWorking, CurrentRound: 1, TimeRemainingSeconds: 10, IsRunning: true})
	m := New(f)
	m = press(t, m, runes("4"))
	assert.Empty(t, f.scores)

	f.state = domain.SessionState{Phase: domain.PhaseAwaitingIntensity, CurrentRound: 1}
	next, _ := m.Update(eventMsg{State: &domain.StateEvent{}})
	m = next.(Model)
	assert.Contains(t, m.View(), "Round 1 done")

	press(t, m, runes("4"))
	assert.Equal(t, []string{"4"}, f.scores)
}

func TestViewShowsClockRoundAndFocus(t *testing.T) {
	f := newFake(domain.SessionState{Phase: domain.PhaseWorking, CurrentRound: 1, TimeRemainingSeconds: 95, IsRunning: false})
	m := New(f)
	view := m.View()

	assert.Contains(t, view, "01:35")
	assert.Contains(t, view, "ROUND 1/3")
	assert.Contains(t, view, "jab-cross")
	assert.Contains(t, view, "‖")
}

func TestEventsUpdateNoticeAndClose(t *testing.T) {
	f := newFake(domain.NewSessionState(true))
	m := New(f)

	next, cmd := m.Update(eventMsg{Notice: &domain.Notice{Message: "voice turned off"}})
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "voice turned off")

	close(f.events)
	msg := waitForEvent(f.events)()
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.True(t, m.closed)

	_, cmd = m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
