package engine

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	tick "github.com/vburojevic/rounds/internal/clock"
	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/cue"
	"github.com/vburojevic/rounds/internal/domain"
)

// CueSink plays cues without blocking the caller.
type CueSink interface {
	Dispatch(ev cue.Event) bool
}

// SnapshotSink persists snapshots without blocking the caller.
type SnapshotSink interface {
	Save(snap *domain.Snapshot)
	Clear(ctx context.Context, key string) error
}

// VoiceControl is the voice command source owned by the session.
type VoiceControl interface {
	SetEnabled(on bool)
	Stop()
}

// clearTimeout bounds removing an abandoned session's snapshot on the way out.
const clearTimeout = 5 * time.Second

// Event is one observer notification. Exactly one field is set.
type Event struct {
	State  *domain.StateEvent
	Cue    *domain.CueEvent
	Notice *domain.Notice
}

// Runner drives a Machine from a command channel and a ticker. Commands queued before a
// tick are applied first.
type Runner struct {
	m         *Machine
	cmds      *command.Channel
	ticker    *tick.Ticker
	clk       clock.Clock
	cues      CueSink
	snapshots SnapshotSink
	voice     VoiceControl
	logger    *zap.Logger

	running bool

	mu      sync.RWMutex
	state   domain.SessionState
	subs    []chan Event
	stopped bool
	done    chan struct{}
	once    sync.Once
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the clock used for timestamps and, unless WithTicker is given, ticks.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clk = c }
}

// WithTicker overrides the tick source.
func WithTicker(t *tick.Ticker) RunnerOption {
	return func(r *Runner) { r.ticker = t }
}

func WithCues(c CueSink) RunnerOption {
	return func(r *Runner) { r.cues = c }
}

func WithSnapshots(s SnapshotSink) RunnerOption {
	return func(r *Runner) { r.snapshots = s }
}

func WithVoice(v VoiceControl) RunnerOption {
	return func(r *Runner) { r.voice = v }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner wires m to cmds. The runner closes cmds when it stops.
func NewRunner(m *Machine, cmds *command.Channel, opts ...RunnerOption) *Runner {
	r := &Runner{
		m:      m,
		cmds:   cmds,
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clk == nil {
		r.clk = clock.New()
	}
	if r.ticker == nil {
		r.ticker = tick.New(r.clk, tick.DefaultResolution)
	}
	r.logger = r.logger.With(zap.String("session_id", m.ID()))
	r.state = m.State()
	return r
}

// ID is the session id.
func (r *Runner) ID() string { return r.m.ID() }

// Config is the session configuration.
func (r *Runner) Config() domain.SessionConfig { return r.m.Config() }

// State returns the latest published state. Safe from any goroutine.
func (r *Runner) State() domain.SessionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// Active reports whether the session still accepts input.
func (r *Runner) Active() bool {
	return r.State().Phase != domain.PhaseFinished
}

// Abandoned reports whether the session was abandoned rather than finished.
func (r *Runner) Abandoned() bool {
	select {
	case <-r.done:
		return r.m.Abandoned()
	default:
		return false
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Subscribe registers an observer. Slow observers miss events rather than stalling the
// session. The channel closes when the runner stops.
func (r *Runner) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		close(ch)
		return ch, func() {}
	}
	r.subs = append(r.subs, ch)
	return ch, func() { r.unsubscribe(ch) }
}

func (r *Runner) unsubscribe(ch chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.subs {
		if c == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Notify publishes a user-visible notice.
func (r *Runner) Notify(code, message string) {
	r.publish(Event{Notice: domain.NewNotice(r.m.ID(), code, message, r.clk.Now())})
}

// Run processes commands and ticks until the session finishes or ctx is cancelled. It
// stops the ticker and the voice source on the way out; calling it twice is a no-op.
func (r *Runner) Run(ctx context.Context) error {
	started := false
	r.once.Do(func() { started = true })
	if !started {
		return nil
	}
	defer r.shutdown()

	st := r.m.State()
	r.running = st.IsRunning
	reason := "init"
	if st.Started() {
		reason = "restore"
	}
	r.publishState(reason, st)
	if r.voice != nil {
		r.voice.SetEnabled(st.VoiceEnabled)
	}
	if st.Phase == domain.PhaseFinished {
		return nil
	}

	r.ticker.Start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.cmds.Ready():
			r.drain()
		case t := <-r.ticker.C():
			r.drain()
			r.apply("tick", r.m.Tick(t.Elapsed, t.At))
		}
		if r.m.st.Phase == domain.PhaseFinished {
			return nil
		}
	}
}

func (r *Runner) drain() {
	for _, cmd := range r.cmds.Drain() {
		if cmd.At.IsZero() {
			cmd.At = r.clk.Now()
		}
		prevVoice := r.m.st.VoiceEnabled
		out := r.m.Apply(cmd)
		r.apply(string(cmd.Kind), out)
		if out.Err != nil {
			r.logger.Debug("command rejected", zap.String("command", string(cmd.Kind)), zap.Error(out.Err))
		}
		st := r.m.State()
		if r.voice != nil && st.VoiceEnabled != prevVoice {
			r.voice.SetEnabled(st.VoiceEnabled)
		}
		cmd.Respond(command.Result{Accepted: out.Changed, State: st, Err: out.Err})
	}
}

func (r *Runner) apply(reason string, out Outcome) {
	if !out.Changed {
		return
	}
	st := r.m.State()
	now := r.clk.Now()

	if !r.running && st.IsRunning {
		// Resuming: restart the second count and drop a tick sampled while paused.
		r.ticker.Rebase()
		select {
		case <-r.ticker.C():
		default:
		}
	}
	r.running = st.IsRunning

	// An abandoned session's snapshot is removed in shutdown.
	if r.snapshots != nil && !r.m.Abandoned() {
		r.snapshots.Save(r.m.Snapshot(now))
	}

	for _, ev := range out.Cues {
		if r.cues != nil {
			r.cues.Dispatch(ev)
		}
		r.publish(Event{Cue: &domain.CueEvent{
			Type:          "cue",
			SchemaVersion: domain.SchemaVersion,
			SessionID:     r.m.ID(),
			Cue:           string(ev.Kind),
			Round:         ev.Round,
			Countdown:     ev.Seconds,
			Phrase:        cue.Map(ev, true).Phrase,
			Timestamp:     now.UTC().Format(time.RFC3339),
		}})
	}
	r.publishState(reason, st)
}

func (r *Runner) publishState(reason string, st domain.SessionState) {
	r.mu.Lock()
	r.state = st.Clone()
	r.mu.Unlock()
	r.publish(Event{State: domain.NewStateEvent(r.m.ID(), reason, r.m.Config(), st, r.clk.Now())})
}

func (r *Runner) publish(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Runner) shutdown() {
	r.ticker.Stop()
	if r.voice != nil {
		r.voice.Stop()
	}
	r.cmds.Close()
	if r.snapshots != nil && r.m.Abandoned() {
		ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
		if err := r.snapshots.Clear(ctx, r.m.ID()); err != nil {
			r.logger.Warn("clear abandoned snapshot", zap.Error(err))
		}
		cancel()
	}

	r.mu.Lock()
	r.stopped = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
	close(r.done)
}
