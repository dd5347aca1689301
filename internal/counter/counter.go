// Package counter animates a displayed integer from zero to a target once the
// element showing it has been revealed.
//
// A Counter moves through three states. It starts Idle, becomes Started on the
// first visibility event covering at least Threshold of the element, and ends
// Completed when the configured duration has elapsed. Close releases the tick
// and the observer whatever state the counter is in.
package counter

import (
	"math"
	"sync"
	"time"
)

const (
	// Threshold is the visible fraction that triggers the animation.
	Threshold = 0.5

	DefaultDuration = 2 * time.Second
	DefaultTick     = 16 * time.Millisecond
)

type State int

const (
	Idle State = iota
	Started
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Started:
		return "started"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

type Option func(*Counter)

// WithTick sets the sampling interval of the animation.
func WithTick(d time.Duration) Option {
	return func(c *Counter) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithClock replaces the wall clock used to measure elapsed time.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

type Counter struct {
	target   int
	duration time.Duration
	tick     time.Duration
	now      func() time.Time

	mu     sync.Mutex
	state  State
	value  int
	start  time.Time
	closed bool

	stop     chan struct{}
	done     chan struct{}
	updates  chan int
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Idle counter for target. A negative target is treated as
// zero and a non-positive duration completes on the first tick.
func New(target int, duration time.Duration, opts ...Option) *Counter {
	if target < 0 {
		target = 0
	}
	c := &Counter{
		target:   target,
		duration: duration,
		tick:     DefaultTick,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		updates:  make(chan int, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe feeds a visibility event with the fraction of the element that is
// in the viewport. It reports whether this event started the animation; only
// the first qualifying event on an open counter does.
func (c *Counter) Observe(ratio float64) bool {
	c.mu.Lock()
	if c.closed || c.state != Idle || ratio < Threshold {
		c.mu.Unlock()
		return false
	}
	c.state = Started
	c.start = c.now()
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run()
	return true
}

func (c *Counter) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if c.advance(c.now()) {
				return
			}
		}
	}
}

// advance samples the animation at now and reports whether it has completed.
func (c *Counter) advance(now time.Time) bool {
	c.mu.Lock()
	switch c.state {
	case Completed:
		c.mu.Unlock()
		return true
	case Idle:
		c.mu.Unlock()
		return false
	}

	elapsed := now.Sub(c.start)
	if elapsed < 0 {
		elapsed = 0
	}

	finished := elapsed >= c.duration
	v := c.target
	if finished {
		c.state = Completed
	} else {
		v = progress(elapsed, c.duration, c.target)
	}
	if v < c.value {
		v = c.value
	}
	c.value = v
	c.mu.Unlock()

	c.publish(v)
	if finished {
		c.finish()
	}
	return finished
}

// progress rounds the linear position of elapsed within duration. The target
// itself is only shown once the duration is over, so rounding near the end
// cannot make the counter look finished early.
func progress(elapsed, duration time.Duration, target int) int {
	v := int(math.Round(float64(elapsed) / float64(duration) * float64(target)))
	if v >= target {
		v = target - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// publish keeps only the latest value in the updates channel. The ticking
// goroutine is the only sender.
func (c *Counter) publish(v int) {
	select {
	case c.updates <- v:
	default:
		select {
		case <-c.updates:
		default:
		}
		c.updates <- v
	}
}

func (c *Counter) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Close stops the tick and detaches the observer. It is safe to call more than
// once and waits for the ticking goroutine to exit.
func (c *Counter) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()
	c.finish()
}

func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Counter) Target() int { return c.target }

func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates delivers the most recent displayed value after each tick.
func (c *Counter) Updates() <-chan int { return c.updates }

// Done is closed when the animation completes or the counter is closed.
func (c *Counter) Done() <-chan struct{} { return c.done }
