package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

var (
	// ErrNoSpeech is the transient "heard nothing" signal; recognition continues.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrInterrupted means the platform paused recognition; it may be restarted.
	ErrInterrupted = errors.New("recognition interrupted")
	// ErrStreamClosed means the utterance source ended and cannot be reopened.
	ErrStreamClosed = errors.New("utterance stream closed")
	// ErrVoiceDisabled wraps the fatal error that shut a voice source down.
	ErrVoiceDisabled = errors.New("voice control disabled")
)

// Severity classifies recognizer errors.
type Severity int

const (
	SeverityTransient Severity = iota
	SeverityInterrupted
	SeverityFatal
)

// ClassifyError decides how a recognizer error affects the voice source.
func ClassifyError(err error) Severity {
	switch {
	case err == nil, errors.Is(err, ErrNoSpeech):
		return SeverityTransient
	case errors.Is(err, ErrInterrupted):
		return SeverityInterrupted
	default:
		return SeverityFatal
	}
}

// Recognizer is a continuous speech-to-text stream.
type Recognizer interface {
	Start(ctx context.Context) error
	Utterances() <-chan string
	Errors() <-chan error
	Stop() error
}

// NoticeFunc surfaces a non-blocking message to the user.
type NoticeFunc func(code, message string)

// VoiceSource pumps recognizer output into a Channel as voice commands.
type VoiceSource struct {
	rec         Recognizer
	out         *Channel
	debounce    *Debounce
	active      func() bool
	notice      NoticeFunc
	logger      *zap.Logger
	clk         clock.Clock
	maxRestarts int

	enabled atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// VoiceOption configures a VoiceSource.
type VoiceOption func(*VoiceSource)

// WithDebounce sets the repeated-command window.
func WithDebounce(d *Debounce) VoiceOption {
	return func(v *VoiceSource) { v.debounce = d }
}

// WithActive sets the predicate consulted before restarting after an interruption.
func WithActive(fn func() bool) VoiceOption {
	return func(v *VoiceSource) { v.active = fn }
}

// WithNotice sets the callback for user-visible notices.
func WithNotice(fn NoticeFunc) VoiceOption {
	return func(v *VoiceSource) { v.notice = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) VoiceOption {
	return func(v *VoiceSource) { v.logger = l }
}

// WithClock sets the clock used to stamp commands.
func WithClock(c clock.Clock) VoiceOption {
	return func(v *VoiceSource) { v.clk = c }
}

// WithMaxRestarts bounds consecutive restarts without a single utterance.
func WithMaxRestarts(n int) VoiceOption {
	return func(v *VoiceSource) { v.maxRestarts = n }
}

// NewVoiceSource wires rec to out. Voice input starts enabled.
func NewVoiceSource(rec Recognizer, out *Channel, opts ...VoiceOption) *VoiceSource {
	v := &VoiceSource{
		rec:         rec,
		out:         out,
		active:      func() bool { return true },
		notice:      func(string, string) {},
		logger:      zap.NewNop(),
		clk:         clock.New(),
		maxRestarts: 20,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.enabled.Store(true)
	return v
}

// SetEnabled gates forwarding of recognized commands without stopping recognition.
func (v *VoiceSource) SetEnabled(on bool) {
	v.enabled.Store(on)
}

// Enabled reports whether recognized commands are forwarded.
func (v *VoiceSource) Enabled() bool {
	return v.enabled.Load()
}

// Start runs the pump in the background.
func (v *VoiceSource) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done != nil || v.stopped {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	go func() {
		defer close(v.done)
		if err := v.Run(ctx); err != nil {
			v.logger.Warn("voice source stopped", zap.Error(err))
		}
	}()
}

// Stop halts the pump and the recognizer. Safe to call repeatedly.
func (v *VoiceSource) Stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	cancel, done := v.cancel, v.done
	v.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Run pumps until ctx ends, the session stops needing voice, or a fatal error occurs.
// A fatal error disables voice and is returned wrapped in ErrVoiceDisabled.
func (v *VoiceSource) Run(ctx context.Context) error {
	if err := v.rec.Start(ctx); err != nil {
		return v.fail(err)
	}
	defer v.rec.Stop()

	restarts := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case utterance := <-v.rec.Utterances():
			restarts = 0
			v.handle(utterance)

		case err := <-v.rec.Errors():
			v.drainPending()
			switch ClassifyError(err) {
			case SeverityTransient:
				v.logger.Debug("voice transient error", zap.Error(err))

			case SeverityInterrupted:
				if !v.active() {
					v.logger.Debug("voice interrupted after session end; not restarting")
					return nil
				}
				restarts++
				if v.maxRestarts > 0 && restarts > v.maxRestarts {
					return v.fail(fmt.Errorf("recognizer restarted %d times without input: %w", restarts-1, err))
				}
				v.logger.Debug("restarting voice recognition", zap.Int("attempt", restarts))
				if err := v.rec.Start(ctx); err != nil {
					return v.fail(err)
				}

			default:
				return v.fail(err)
			}
		}
	}
}

func (v *VoiceSource) handle(utterance string) {
	if !v.enabled.Load() {
		return
	}
	kind, ok := Classify(utterance)
	if !ok {
		v.logger.Debug("unrecognized utterance dropped", zap.String("utterance", utterance))
		return
	}
	now := v.clk.Now()
	if !v.debounce.Allow(kind, now) {
		v.logger.Debug("repeated voice command suppressed", zap.String("command", string(kind)))
		return
	}
	v.out.Submit(Command{Kind: kind, Source: SourceVoice, At: now})
}

// drainPending handles utterances that were finalized before the error was reported.
func (v *VoiceSource) drainPending() {
	for {
		select {
		case utterance := <-v.rec.Utterances():
			v.handle(utterance)
		default:
			return
		}
	}
}

func (v *VoiceSource) fail(err error) error {
	_ = v.rec.Stop()
	v.notice("voice_disabled", "Voice control stopped: "+err.Error()+". Use the on-screen controls.")
	return fmt.Errorf("%w: %v", ErrVoiceDisabled, err)
}
