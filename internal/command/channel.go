package command

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned once the consumer has shut the channel down.
var ErrClosed = errors.New("command channel closed")

// Channel is an unbounded FIFO with a single consumer. Producers never block, and the
// consumer sees commands strictly in arrival order.
type Channel struct {
	mu     sync.Mutex
	queue  []Command
	notify chan struct{}
	closed bool
}

// NewChannel creates an empty, open channel.
func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{}, 1)}
}

// Submit enqueues cmd. It returns false if the channel is closed, in which case the
// command's reply (if any) receives ErrClosed.
func (c *Channel) Submit(cmd Command) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cmd.Respond(Result{Err: ErrClosed})
		return false
	}
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// Send submits cmd and waits until the consumer has applied it.
func (c *Channel) Send(ctx context.Context, cmd Command) (Result, error) {
	reply := make(chan Result, 1)
	cmd.Reply = reply
	c.Submit(cmd)

	select {
	case r := <-reply:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Ready fires whenever new commands may be waiting.
func (c *Channel) Ready() <-chan struct{} {
	return c.notify
}

// Drain removes and returns every queued command in arrival order.
func (c *Channel) Drain() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	out := c.queue
	c.queue = nil
	return out
}

// Len reports the number of queued commands.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close rejects further submissions and fails anything still queued. Safe to call twice.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, cmd := range pending {
		cmd.Respond(Result{Err: ErrClosed})
	}
}
