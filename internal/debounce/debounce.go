// Package debounce collapses bursts of calls into one.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Group.Wait when a newer call for the same key
// arrived before the window elapsed.
var ErrSuperseded = errors.New("debounce: superseded by a newer call")

// Debouncer runs fn once Trigger has not been called for window.
type Debouncer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func New(window time.Duration, fn func()) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger (re)arms the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// fire runs fn for the timer armed as generation gen. A timer that was
// replaced after it had already fired does nothing.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Stop cancels a pending call. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Group debounces blocking callers per key. Only the most recent Wait for a
// key returns nil; the ones it replaced return ErrSuperseded straight away.
type Group struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewGroup(window time.Duration) *Group {
	return &Group{
		window:  window,
		pending: make(map[string]chan struct{}),
	}
}

// Wait blocks for the window. It returns nil if no newer Wait for key arrived
// meanwhile, ErrSuperseded if one did, or ctx.Err() on cancellation.
func (g *Group) Wait(ctx context.Context, key string) error {
	g.mu.Lock()
	if prev, ok := g.pending[key]; ok {
		close(prev)
	}
	cancel := make(chan struct{})
	g.pending[key] = cancel
	g.mu.Unlock()

	timer := time.NewTimer(g.window)
	defer timer.Stop()

	select {
	case <-timer.C:
		if g.release(key, cancel) {
			return nil
		}
		return ErrSuperseded
	case <-cancel:
		return ErrSuperseded
	case <-ctx.Done():
		g.release(key, cancel)
		return ctx.Err()
	}
}

// Cancel supersedes any pending Wait for key without starting a new one.
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.pending[key]; ok {
		close(prev)
		delete(g.pending, key)
	}
}

// release drops key's pending entry if it still belongs to cancel.
func (g *Group) release(key string, cancel chan struct{}) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending[key] != cancel {
		return false
	}
	delete(g.pending, key)
	return true
}

// Pending reports how many keys have a caller waiting.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
