package cue

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultQueueSize = 32

// Dispatcher plays cues on a single worker so overlapping requests wait their turn.
// Output failures are logged and dropped.
type Dispatcher struct {
	tone    TonePlayer
	speaker Speaker
	haptics Haptics
	logger  *zap.Logger
	speech  atomic.Bool

	queue   chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	closeMu sync.RWMutex
	closed  bool

	onPlayed func(Cue)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithTone(p TonePlayer) Option { return func(d *Dispatcher) { d.tone = p } }
func WithSpeaker(s Speaker) Option { return func(d *Dispatcher) { d.speaker = s } }
func WithHaptics(h Haptics) Option { return func(d *Dispatcher) { d.haptics = h } }
func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithPlayedHook is called after each cue finishes, successfully or not.
func WithPlayedHook(fn func(Cue)) Option { return func(d *Dispatcher) { d.onPlayed = fn } }

// NewDispatcher starts the worker. Speech starts enabled.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: zap.NewNop(),
		queue:  make(chan Event, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.speech.Store(true)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.run()
	return d
}

// SetSpeech toggles spoken phrases.
func (d *Dispatcher) SetSpeech(on bool) {
	d.speech.Store(on)
}

// Dispatch enqueues ev without blocking. When playback has fallen behind and the queue is
// full, the oldest waiting cue is dropped to make room. It reports false once closed.
func (d *Dispatcher) Dispatch(ev Event) bool {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return false
	}
	for {
		select {
		case d.queue <- ev:
			return true
		default:
		}
		select {
		case stale := <-d.queue:
			d.logger.Debug("cue queue full; dropping oldest",
				zap.String("cue", string(stale.Kind)), zap.Int("round", stale.Round))
		default:
		}
	}
}

// Close stops accepting cues, interrupts the one playing and waits for the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		close(d.queue)
		d.closeMu.Unlock()
		d.cancel()
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}
		c := Map(ev, d.speech.Load())
		d.play(c)
		if d.onPlayed != nil {
			d.onPlayed(c)
		}
	}
}

func (d *Dispatcher) play(c Cue) {
	log := d.logger.With(zap.String("cue", string(c.Event.Kind)), zap.Int("round", c.Event.Round))

	if d.haptics != nil && len(c.Haptic) > 0 {
		if err := d.haptics.Vibrate(d.ctx, c.Haptic); err != nil {
			log.Debug("haptic output failed", zap.Error(err))
		}
	}
	if d.tone != nil && c.Tone.Hz > 0 {
		if err := d.tone.PlayTone(d.ctx, c.Tone); err != nil {
			log.Debug("tone output failed", zap.Error(err))
		}
	}
	if d.speaker != nil && c.Phrase != "" {
		if err := d.speaker.Speak(d.ctx, c.Phrase); err != nil {
			log.Debug("speech output failed", zap.Error(err))
		}
	}
}
