package tmux

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
)

type fakeTmux struct {
	mu       sync.Mutex
	calls    [][]string
	sessions map[string]bool
}

func (f *fakeTmux) Command(args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	switch args[0] {
	case "has-session":
		if !f.sessions[args[2]] {
			return "", errors.New("can't find session")
		}
	case "new-session":
		if f.sessions == nil {
			f.sessions = map[string]bool{}
		}
		f.sessions[args[3]] = true
	}
	return "", nil
}

func (f *fakeTmux) joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func TestSetupCreatesSessionOnce(t *testing.T) {
	ft := &fakeTmux{}
	m, err := NewManagerWith(ft, Config{SessionName: "rounds"})
	require.NoError(t, err)

	assert.ErrorIs(t, m.WriteLine("x"), ErrNoPaneAvailable)
	require.NoError(t, m.Setup())
	require.NoError(t, m.Setup())

	assert.Equal(t, []string{
		"has-session -t rounds",
		"new-session -d -s rounds",
		"has-session -t rounds",
	}, ft.joined())
}

func TestNewManagerNeedsName(t *testing.T) {
	_, err := NewManagerWith(&fakeTmux{}, Config{})
	assert.ErrorIs(t, err, ErrNoSessionName)
}

func TestWriterSplitsLines(t *testing.T) {
	ft := &fakeTmux{}
	m, _ := NewManagerWith(ft, Config{SessionName: "s"})
	require.NoError(t, m.Setup())
	w := NewWriter(m)

	_, err := w.Write([]byte("WORK R1/3 03:00\nit's"))
	require.NoError(t, err)
	_, err = w.Write([]byte(" on\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	calls := ft.joined()[2:]
	assert.Equal(t, []string{
		"send-keys -t s:0.0 echo 'WORK R1/3 03:00' Enter",
		`send-keys -t s:0.0 echo 'it'"'"'s on' Enter`,
		"send-keys -t s:0.0 echo 'tail' Enter",
	}, calls)
}

func TestCloseKillsWhenConfigured(t *testing.T) {
	ft := &fakeTmux{}
	m, _ := NewManagerWith(ft, Config{SessionName: "s", KillOnClose: true})
	require.NoError(t, m.Setup())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, "kill-session -t s", ft.joined()[len(ft.joined())-1])
}

func TestMirrorSetsStatusAndEchoesCues(t *testing.T) {
	ft := &fakeTmux{}
	m, _ := NewManagerWith(ft, Config{SessionName: "s"})
	require.NoError(t, m.Setup())

	events := make(chan engine.Event, 8)
	state := &domain.StateEvent{Phase: domain.PhaseWorking, Round: 1, RoundCount: 2, Remaining: 180, Running: true}
	events <- engine.Event{State: state}
	events <- engine.Event{State: state}
	events <- engine.Event{Cue: &domain.CueEvent{Phrase: "Round 1. Fight!"}}
	events <- engine.Event{Notice: &domain.Notice{Message: "voice off #1"}}
	close(events)

	done := make(chan struct{})
	go func() {
		Mirror(context.Background(), m, events, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop when events closed")
	}

	calls := ft.joined()[2:]
	assert.Equal(t, []string{
		"set-option -t s status-right WORK R1/2 03:00",
		"send-keys -t s:0.0 echo '♪ Round 1. Fight!' Enter",
		"send-keys -t s:0.0 echo '! voice off #1' Enter",
	}, calls)
}
