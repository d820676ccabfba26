// Package throttle bounds how often a value is forwarded while making sure
// the latest value always gets through.
package throttle

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInterval is the minimum spacing of move commands (20 Hz).
const DefaultInterval = 50 * time.Millisecond

// SendFunc forwards a value. A non-nil error means nothing was sent.
type SendFunc[T any] func(T) error

// Coalescer forwards at most one value per interval. Values submitted
// inside the interval replace each other; the last one is sent when the
// interval expires.
type Coalescer[T any] struct {
	send     SendFunc[T]
	gate     func() bool
	interval time.Duration
	clock    clock.Clock

	mu         sync.Mutex
	lastSend   time.Time
	pending    T
	hasPending bool
	timer      *clock.Timer
	gen        uint64
}

// Option configures a Coalescer.
type Option func(*options)

type options struct {
	interval time.Duration
	clock    clock.Clock
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a coalescer. gate reports whether sending is currently
// allowed; while it returns false submissions are dropped.
func New[T any](send SendFunc[T], gate func() bool, opts ...Option) *Coalescer[T] {
	o := options{interval: DefaultInterval, clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if gate == nil {
		gate = func() bool { return true }
	}
	return &Coalescer[T]{
		send:     send,
		gate:     gate,
		interval: o.interval,
		clock:    o.clock,
	}
}

// Interval returns the minimum spacing between sends.
func (c *Coalescer[T]) Interval() time.Duration {
	return c.interval
}

// Submit offers a new value. It is sent immediately when the interval since
// the last send has elapsed, otherwise it becomes the pending value and a
// trailing send is scheduled.
func (c *Coalescer[T]) Submit(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gate() {
		return
	}

	now := c.clock.Now()
	elapsed := now.Sub(c.lastSend)
	if c.lastSend.IsZero() || elapsed >= c.interval {
		c.cancelLocked()
		if c.send(v) == nil {
			c.lastSend = now
		}
		return
	}

	c.pending = v
	c.hasPending = true
	if c.timer == nil {
		gen := c.gen
		c.timer = c.clock.AfterFunc(c.interval-elapsed, func() { c.fire(gen) })
	}
}

func (c *Coalescer[T]) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// superseded by Cancel or an immediate send
	if gen != c.gen {
		return
	}
	c.timer = nil
	if !c.hasPending {
		return
	}
	v := c.pending
	c.clearPendingLocked()
	if !c.gate() {
		return
	}
	if c.send(v) == nil {
		c.lastSend = c.clock.Now()
	}
}

// Cancel drops the pending value and stops any scheduled send.
func (c *Coalescer[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Pending returns the value waiting for the trailing send, if any.
func (c *Coalescer[T]) Pending() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.hasPending
}

func (c *Coalescer[T]) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.clearPendingLocked()
}

func (c *Coalescer[T]) clearPendingLocked() {
	var zero T
	c.pending = zero
	c.hasPending = false
}
