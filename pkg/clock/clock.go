// Package clock provides a time abstraction for testability.
package clock

import "time"

// Clock is an interface over the time operations the scheduler needs,
// allowing tests to control time deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
	// Until returns the duration until t.
	Until(t time.Time) time.Duration
	// NewTicker returns a new Ticker.
	NewTicker(d time.Duration) Ticker
	// NewTimer returns a new Timer.
	NewTimer(d time.Duration) Timer
	// After waits for the duration to elapse and then sends the current
	// time on the returned channel.
	After(d time.Duration) <-chan time.Time
}

// Ticker wraps time.Ticker for mockability.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer wraps time.Timer for mockability.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// New returns a Clock backed by real time.
func New() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time                       { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration      { return time.Since(t) }
func (RealClock) Until(t time.Time) time.Duration      { return time.Until(t) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
func (t *realTimer) Stop() bool          { return t.timer.Stop() }
