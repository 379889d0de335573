// Package cue maps session events to tones, spoken phrases and haptic patterns and plays
// them one at a time.
package cue

import (
	"fmt"
	"time"
)

// EventKind is a point in the session that deserves a cue.
type EventKind string

const (
	RoundStart EventKind = "round_start"
	RoundEnd   EventKind = "round_end"
	Countdown  EventKind = "countdown"
	SessionEnd EventKind = "session_end"
)

// Event describes what happened. Seconds is set only for Countdown.
type Event struct {
	Kind    EventKind
	Round   int
	Seconds int
	Focus   string
}

// Tone is a synthesized beep.
type Tone struct {
	Hz       int
	Duration time.Duration
}

// Cue is everything to play for one event. Zero-valued parts are skipped.
type Cue struct {
	Event  Event
	Tone   Tone
	Phrase string
	Haptic []time.Duration // alternating vibrate/pause durations
}

// CountdownThresholds are the remaining-second marks announced during a round.
var CountdownThresholds = []int{10, 3, 2, 1}

// IsCountdown reports whether remaining is one of the countdown marks.
func IsCountdown(remaining int) bool {
	for _, n := range CountdownThresholds {
		if n == remaining {
			return true
		}
	}
	return false
}

var countdownWords = map[int]string{10: "ten seconds", 3: "three", 2: "two", 1: "one"}

// Map builds the cue for ev. Phrases are only included when speech is enabled.
func Map(ev Event, speech bool) Cue {
	c := Cue{Event: ev}
	switch ev.Kind {
	case RoundStart:
		c.Tone = Tone{Hz: 440, Duration: 800 * time.Millisecond}
		c.Haptic = []time.Duration{400 * time.Millisecond}
		c.Phrase = fmt.Sprintf("Round %d", ev.Round)
		if ev.Focus != "" {
			c.Phrase += ". " + ev.Focus
		}
	case RoundEnd:
		c.Tone = Tone{Hz: 330, Duration: time.Second}
		c.Haptic = []time.Duration{300 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond}
		c.Phrase = fmt.Sprintf("End of round %d. Rate your intensity", ev.Round)
	case Countdown:
		if ev.Seconds >= 10 {
			c.Tone = Tone{Hz: 880, Duration: 150 * time.Millisecond}
		} else {
			c.Tone = Tone{Hz: 1000, Duration: 120 * time.Millisecond}
		}
		c.Haptic = []time.Duration{80 * time.Millisecond}
		c.Phrase = countdownWords[ev.Seconds]
	case SessionEnd:
		c.Tone = Tone{Hz: 262, Duration: 1500 * time.Millisecond}
		c.Haptic = []time.Duration{500 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}
		c.Phrase = "Session complete"
	default:
		return Cue{Event: ev}
	}
	if !speech {
		c.Phrase = ""
	}
	return c
}
