package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/persist"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var boxing = domain.SessionConfig{RoundCount: 3, RoundDurationSeconds: 180, RestDurationSeconds: 60, Scale: domain.ScaleNumeric}

type memRecords struct {
	mu   sync.Mutex
	recs []*domain.FinishedSession
}

func (m *memRecords) CreateFinishedSession(_ context.Context, rec *domain.FinishedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

type harness struct {
	host   *Host
	store  persist.Store
	clk    *clock.Mock
	cancel context.CancelFunc
	runErr chan error
}

func openHost(t *testing.T, store persist.Store, mutate func(*Options)) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(t0)
	if store == nil {
		var err error
		store, err = persist.NewStore(persist.StoreTypeMemory)
		require.NoError(t, err)
	}
	opts := Options{Config: boxing, Store: store, Clock: clk, Records: &memRecords{}, Debounce: 1500 * time.Millisecond}
	if mutate != nil {
		mutate(&opts)
	}
	h, err := Open(context.Background(), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hs := &harness{host: h, store: store, clk: clk, cancel: cancel, runErr: make(chan error, 1)}
	go func() { hs.runErr <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.Done()
		_ = h.Close(context.Background())
	})
	return hs
}

func send(t *testing.T, h *Host, kind command.Kind) command.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := h.Send(ctx, kind)
	require.NoError(t, err)
	return res
}

func TestOpenNewSessionRunsToRecord(t *testing.T) {
	recs := &memRecords{}
	hs := openHost(t, nil, func(o *Options) { o.Records = recs })
	h := hs.host

	assert.False(t, h.Recovered())
	assert.Len(t, h.ID(), 36)

	res := send(t, h, command.Start)
	assert.True(t, res.Accepted)
	assert.Equal(t, domain.PhaseWorking, res.State.Phase)

	send(t, h, command.EndSession)
	select {
	case err := <-hs.runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session loop did not stop")
	}

	rec, err := h.Finalize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, h.ID(), rec.SessionID)
	assert.Equal(t, "local", rec.UserID)
	require.Len(t, recs.recs, 1)

	keys, err := hs.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys, "snapshot cleared after the record is written")
}

func TestOpenResumesSnapshot(t *testing.T) {
	store, err := persist.NewStore(persist.StoreTypeMemory)
	require.NoError(t, err)
	st := domain.SessionState{Phase: domain.PhaseResting, CurrentRound: 1, TimeRemainingSeconds: 42, StartedAt: t0.Add(-4 * time.Minute)}
	require.NoError(t, store.Save(context.Background(), domain.NewSnapshot("old-session", boxing, st, t0.Add(-time.Minute))))

	hs := openHost(t, store, nil)
	assert.True(t, hs.host.Recovered())
	assert.Equal(t, "old-session", hs.host.ID())
	assert.Equal(t, 42, hs.host.State().TimeRemainingSeconds)
}

func TestOpenFreshIgnoresSnapshot(t *testing.T) {
	store, err := persist.NewStore(persist.StoreTypeMemory)
	require.NoError(t, err)
	st := domain.SessionState{Phase: domain.PhaseWorking, CurrentRound: 1, TimeRemainingSeconds: 100, StartedAt: t0}
	require.NoError(t, store.Save(context.Background(), domain.NewSnapshot("old-session", boxing, st, t0)))

	hs := openHost(t, store, func(o *Options) { o.Fresh = true; o.ID = "new-one" })
	assert.False(t, hs.host.Recovered())
	assert.Equal(t, "new-one", hs.host.ID())
	assert.Equal(t, domain.PhaseIdle, hs.host.State().Phase)
}

func TestHearHonoursToggleAndDebounce(t *testing.T) {
	hs := openHost(t, nil, nil)
	h := hs.host
	ctx := context.Background()

	_, _, err := h.Hear(ctx, "start round")
	assert.ErrorIs(t, err, ErrVoiceOff)

	res, err := h.SetVoice(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.State.VoiceEnabled)

	_, _, err = h.Hear(ctx, "what a nice day")
	assert.ErrorIs(t, err, ErrNotRecognized)

	kind, res, err := h.Hear(ctx, "okay start round")
	require.NoError(t, err)
	assert.Equal(t, command.Start, kind)
	assert.Equal(t, domain.PhaseWorking, res.State.Phase)

	_, _, err = h.Hear(ctx, "start round")
	assert.ErrorIs(t, err, ErrDebounced)

	hs.clk.Add(2 * time.Second)
	kind, _, err = h.Hear(ctx, "pause")
	require.NoError(t, err)
	assert.Equal(t, command.Pause, kind)
}

func TestRecordIntensityRejectsBadInput(t *testing.T) {
	hs := openHost(t, nil, func(o *Options) {
		o.Config = domain.SessionConfig{RoundCount: 2, RoundDurationSeconds: 1, RestDurationSeconds: 0, Scale: domain.ScaleNumeric}
	})
	h := hs.host

	_, err := h.RecordIntensity(context.Background(), "9")
	assert.Error(t, err)

	res, err := h.RecordIntensity(context.Background(), "4")
	require.NoError(t, err, "scores outside AwaitingIntensity are ignored, not errors")
	assert.False(t, res.Accepted)
}

func TestAbandonedSessionIsNotFinalized(t *testing.T) {
	hs := openHost(t, nil, nil)
	send(t, hs.host, command.Start)
	send(t, hs.host, command.Abandon)
	<-hs.host.Done()

	_, err := hs.host.Finalize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAbandoned)
}

func TestParseManual(t *testing.T) {
	tests := []struct {
		line string
		want command.Command
		ok   bool
	}{
		{"s", command.Command{Kind: command.Start}, true},
		{" Pause ", command.Command{Kind: command.Pause}, true},
		{"n", command.Command{Kind: command.SkipForward}, true},
		{"voice on", command.Command{Kind: command.SetVoiceEnabled, Enabled: true}, true},
		{"voice off", command.Command{Kind: command.SetVoiceEnabled}, true},
		{"voice maybe", command.Command{}, false},
		{"abandon", command.Command{Kind: command.Abandon}, true},
		{"4", command.Command{}, false},
		{"", command.Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseManual(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
