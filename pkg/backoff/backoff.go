// Package backoff computes exponential retry delays for failing warm runs.
package backoff

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prewarm/prewarm/pkg/duration"
)

// ErrExhausted is returned by Delay once the attempt count reaches
// MaxRetries. Callers stop retrying and fall back to the normal schedule.
var ErrExhausted = errors.New("backoff: retries exhausted")

// Policy describes an exponential backoff sequence.
type Policy struct {
	InitialDelay duration.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     duration.Duration `json:"max_delay" yaml:"max_delay"`
	Factor       float64           `json:"factor" yaml:"factor"`
	MaxRetries   int               `json:"max_retries" yaml:"max_retries"`
}

// Default returns the default retry policy.
func Default() Policy {
	return Policy{
		InitialDelay: duration.Duration(time.Second),
		MaxDelay:     duration.Duration(time.Minute),
		Factor:       2.0,
		MaxRetries:   3,
	}
}

// Validate checks the policy's invariants: positive delays, factor >= 1,
// positive retry budget.
func (p Policy) Validate() error {
	if p.InitialDelay <= 0 {
		return fmt.Errorf("backoff: initial_delay must be positive, got %v", p.InitialDelay)
	}
	if p.MaxDelay <= 0 {
		return fmt.Errorf("backoff: max_delay must be positive, got %v", p.MaxDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("backoff: max_delay %v is less than initial_delay %v", p.MaxDelay, p.InitialDelay)
	}
	if p.Factor < 1 {
		return fmt.Errorf("backoff: factor must be >= 1, got %v", p.Factor)
	}
	if p.MaxRetries <= 0 {
		return fmt.Errorf("backoff: max_retries must be positive, got %d", p.MaxRetries)
	}
	return nil
}

// Delay returns the retry delay for the given zero-based attempt number:
// min(MaxDelay, InitialDelay * Factor^attempt). Once attempt reaches
// MaxRetries it returns ErrExhausted.
func (p Policy) Delay(attempt int) (time.Duration, error) {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= p.MaxRetries {
		return 0, ErrExhausted
	}

	delay := float64(p.InitialDelay.Duration()) * math.Pow(p.Factor, float64(attempt))
	if max := float64(p.MaxDelay.Duration()); delay > max {
		delay = max
	}
	return time.Duration(delay), nil
}
