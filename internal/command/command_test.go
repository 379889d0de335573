package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPreservesArrivalOrder(t *testing.T) {
	ch := NewChannel()
	ch.Submit(Command{Kind: Start})
	ch.Submit(Command{Kind: Pause, Source: SourceVoice})
	ch.Submit(Command{Kind: Resume})

	select {
	case <-ch.Ready():
	default:
		t.Fatal("expected ready signal after submit")
	}

	got := ch.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, []Kind{Start, Pause, Resume}, []Kind{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.Nil(t, ch.Drain())
	assert.Zero(t, ch.Len())
}

func TestChannelSendWaitsForReply(t *testing.T) {
	ch := NewChannel()
	go func() {
		<-ch.Ready()
		for _, cmd := range ch.Drain() {
			cmd.Respond(Result{Accepted: cmd.Kind == Start})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ch.Send(ctx, Command{Kind: Start})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestChannelCloseFailsPendingAndRejectsNew(t *testing.T) {
	ch := NewChannel()
	reply := make(chan Result, 1)
	ch.Submit(Command{Kind: Pause, Reply: reply})
	ch.Close()
	ch.Close()

	res := <-reply
	assert.ErrorIs(t, res.Err, ErrClosed)

	_, err := ch.Send(context.Background(), Command{Kind: Resume})
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, ch.Submit(Command{Kind: Start}))
}

func TestParseKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"start": Start, " P ": Pause, "r": Resume, "next": SkipForward,
		"skip": SkipForward, "END": EndSession, "abandon": Abandon,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("jump")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		utterance string
		want      Kind
		ok        bool
	}{
		{"start round", Start, true},
		{"OK, Start Round!", Start, true},
		{"pause", Pause, true},
		{"please resume now", Resume, true},
		{"end session", EndSession, true},
		{"pause no wait resume", Resume, true},
		{"resume then pause", Pause, true},
		{"paused", "", false},
		{"start", "", false},
		{"end the session", "", false},
		{"", "", false},
		{"what time is it", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got, ok := Classify(tt.utterance)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhrasesListsEveryTrigger(t *testing.T) {
	p := Phrases()
	assert.Len(t, p, 4)
	assert.Equal(t, EndSession, p["end session"])
}

func TestDebounceSuppressesRepeatsWithinWindow(t *testing.T) {
	d := NewDebounce(time.Second)
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, d.Allow(Pause, t0))
	assert.False(t, d.Allow(Pause, t0.Add(500*time.Millisecond)))
	// window slides with each suppressed repeat
	assert.False(t, d.Allow(Pause, t0.Add(1200*time.Millisecond)))
	assert.True(t, d.Allow(Resume, t0.Add(1300*time.Millisecond)))
	assert.True(t, d.Allow(Pause, t0.Add(1400*time.Millisecond)))

	d.Reset()
	assert.True(t, d.Allow(Pause, t0.Add(1500*time.Millisecond)))
}

func TestDebounceDisabled(t *testing.T) {
	var nilDebounce *Debounce
	now := time.Now()
	assert.True(t, nilDebounce.Allow(Pause, now))

	d := NewDebounce(0)
	assert.True(t, d.Allow(Pause, now))
	assert.True(t, d.Allow(Pause, now))
}
