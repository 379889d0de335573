package command

import (
	"sync"
	"time"
)

// Debounce collapses a voice command repeated back-to-back within a window. Continuous
// recognizers often finalize the same phrase twice.
type Debounce struct {
	mu       sync.Mutex
	window   time.Duration
	lastKind Kind
	lastSeen time.Time
}

// NewDebounce creates a debounce filter. window<=0 disables it.
func NewDebounce(window time.Duration) *Debounce {
	return &Debounce{window: window}
}

// Allow reports whether kind seen at now should be forwarded.
func (d *Debounce) Allow(kind Kind, now time.Time) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if kind == d.lastKind && !d.lastSeen.IsZero() && now.Sub(d.lastSeen) < d.window {
		d.lastSeen = now
		return false
	}
	d.lastKind = kind
	d.lastSeen = now
	return true
}

// Reset forgets the last command.
func (d *Debounce) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastKind = ""
	d.lastSeen = time.Time{}
}
