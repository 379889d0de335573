// Package command merges manual and voice input into one ordered command queue.
package command

import (
	"strings"
	"time"

	"github.com/vburojevic/rounds/internal/domain"
)

// Kind enumerates the control operations the state machine understands.
type Kind string

const (
	Start           Kind = "start"
	Pause           Kind = "pause"
	Resume          Kind = "resume"
	SkipForward     Kind = "skip_forward"
	EndSession      Kind = "end_session"
	SetVoiceEnabled Kind = "set_voice_enabled"

	// RecordIntensity carries a score from the intensity logger through the same queue so
	// the machine keeps a single writer.
	RecordIntensity Kind = "record_intensity"
	// Abandon ends the session without recording it.
	Abandon Kind = "abandon"
)

// Source identifies the producer of a command.
type Source string

const (
	SourceManual Source = "manual"
	SourceVoice  Source = "voice"
)

// Command is one queued request. Reply, when set, receives exactly one Result.
type Command struct {
	Kind      Kind
	Source    Source
	Enabled   bool             // SetVoiceEnabled payload
	Intensity domain.Intensity // RecordIntensity payload
	At        time.Time
	Reply     chan<- Result
}

// Result is the outcome of applying a command.
type Result struct {
	Accepted bool
	State    domain.SessionState
	Err      error
}

// Respond delivers r to the command's reply channel, if any, without blocking.
func (c Command) Respond(r Result) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- r:
	default:
	}
}

var kindAliases = map[string]Kind{
	"start":        Start,
	"s":            Start,
	"pause":        Pause,
	"p":            Pause,
	"resume":       Resume,
	"r":            Resume,
	"skip":         SkipForward,
	"skip_forward": SkipForward,
	"next":         SkipForward,
	"n":            SkipForward,
	"end":          EndSession,
	"end_session":  EndSession,
	"e":            EndSession,
	"abandon":      Abandon,
}

// ParseKind maps manual input ("pause", "p", "skip", ...) to a Kind. Voice toggling and
// intensity carry payloads and are parsed by their callers.
func ParseKind(s string) (Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}
