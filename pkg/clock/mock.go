package clock

import (
	"sync"
	"time"
)

// MockClock is a Clock whose time only moves when the test advances it.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
	tickers []*mockTicker
}

// NewMock returns a MockClock set to the given time.
func NewMock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the time elapsed since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Until returns the duration until t.
func (c *MockClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// Set moves the clock to t and fires any elapsed timers and tickers.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.fireElapsed()
}

// Add advances the clock by d and fires any elapsed timers and tickers.
func (c *MockClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.fireElapsed()
}

// fireElapsed delivers to elapsed timers and tickers. Deliveries are
// non-blocking; an unconsumed tick is dropped like the real ticker's.
func (c *MockClock) fireElapsed() {
	for _, t := range c.timers {
		if t.fired || t.stopped || c.current.Before(t.deadline) {
			continue
		}
		t.fired = true
		select {
		case t.ch <- c.current:
		default:
		}
	}
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !c.current.Before(t.next) {
			select {
			case t.ch <- c.current:
			default:
			}
			t.next = t.next.Add(t.interval)
		}
	}
}

// NewTicker returns a mock Ticker driven by Add/Set.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     c.current.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// NewTimer returns a mock Timer driven by Add/Set.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		ch:       make(chan time.Time, 1),
		deadline: c.current.Add(d),
	}
	c.timers = append(c.timers, t)
	return t
}

// After returns a channel that receives once the clock passes d from now.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

type mockTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }
func (t *mockTicker) Stop()               { t.stopped = true }

type mockTimer struct {
	ch       chan time.Time
	deadline time.Time
	fired    bool
	stopped  bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	pending := !t.fired && !t.stopped
	t.stopped = true
	return pending
}
