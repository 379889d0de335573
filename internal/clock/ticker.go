// Package clock turns a wall clock into whole-second elapsed events.
//
// The ticker polls at a sub-second resolution and derives elapsed time from a monotonic
// difference against a fixed origin, so late or throttled callbacks never accumulate drift.
package clock

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultResolution is how often the ticker samples the clock.
const DefaultResolution = 250 * time.Millisecond

// Tick reports the whole seconds that elapsed since the previous tick.
type Tick struct {
	Elapsed int
	At      time.Time
}

// Ticker emits at most one Tick per whole-second boundary crossed.
type Ticker struct {
	clk        clock.Clock
	resolution time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	origin  time.Time
	emitted int64

	out chan Tick
}

// New creates a stopped ticker. A nil clk uses the real clock.
func New(clk clock.Clock, resolution time.Duration) *Ticker {
	if clk == nil {
		clk = clock.New()
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &Ticker{
		clk:        clk,
		resolution: resolution,
		out:        make(chan Tick, 1),
	}
}

// C delivers ticks. The channel is never closed; it simply goes quiet after Stop.
func (t *Ticker) C() <-chan Tick {
	return t.out
}

// Start begins sampling. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	t.origin = t.clk.Now()
	t.emitted = 0

	// Created here rather than in the goroutine so a mock clock advanced right after
	// Start already sees the ticker.
	src := t.clk.Ticker(t.resolution)
	go t.run(src, t.stopCh, t.done)
}

// Stop halts sampling and waits for the loop to exit. Safe to call repeatedly.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	done := t.done
	t.mu.Unlock()

	<-done
}

// Running reports whether the ticker is sampling.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Rebase restarts the second count from now. Used when a paused session resumes so the
// partial second spent paused is not credited to the next tick.
func (t *Ticker) Rebase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.origin = t.clk.Now()
	t.emitted = 0
}

func (t *Ticker) run(src *clock.Ticker, stopCh, done chan struct{}) {
	defer close(done)
	defer src.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-src.C:
			t.sample()
		}
	}
}

func (t *Ticker) sample() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}

	now := t.clk.Now()
	whole := int64(now.Sub(t.origin) / time.Second)
	delta := whole - t.emitted
	if delta < 1 {
		return
	}

	select {
	case t.out <- Tick{Elapsed: int(delta), At: now}:
		t.emitted = whole
	default:
		// Consumer still holds the previous tick; the seconds roll into the next one.
	}
}
