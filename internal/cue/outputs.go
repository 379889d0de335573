package cue

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TonePlayer produces a beep.
type TonePlayer interface {
	PlayTone(ctx context.Context, t Tone) error
}

// Speaker speaks a phrase.
type Speaker interface {
	Speak(ctx context.Context, phrase string) error
}

// Haptics plays a vibration pattern.
type Haptics interface {
	Vibrate(ctx context.Context, pattern []time.Duration) error
}

// Bell rings the terminal bell. Terminals cannot vary pitch, so only the duration is honored.
type Bell struct {
	w  io.Writer
	mu sync.Mutex
}

// NewBell writes BEL characters to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) PlayTone(ctx context.Context, t Tone) error {
	b.mu.Lock()
	_, err := io.WriteString(b.w, "\a")
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	return sleep(ctx, t.Duration)
}

// ExecSpeaker runs a text-to-speech command with the phrase as its final argument,
// e.g. "say" on macOS or "espeak" on Linux.
type ExecSpeaker struct {
	name string
	args []string
}

// NewExecSpeaker parses command into a program and leading arguments.
func NewExecSpeaker(command string) (*ExecSpeaker, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &ExecSpeaker{name: fields[0], args: fields[1:]}, nil
}

func (s *ExecSpeaker) Speak(ctx context.Context, phrase string) error {
	args := append(append([]string{}, s.args...), phrase)
	if out, err := exec.CommandContext(ctx, s.name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// LogHaptics records patterns at debug level, for hosts without a vibration motor.
type LogHaptics struct {
	logger *zap.Logger
}

func NewLogHaptics(logger *zap.Logger) *LogHaptics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHaptics{logger: logger}
}

func (h *LogHaptics) Vibrate(_ context.Context, pattern []time.Duration) error {
	h.logger.Debug("haptic", zap.Durations("pattern", pattern))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
