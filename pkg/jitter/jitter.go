// Package jitter perturbs scheduling delays to avoid synchronized load spikes.
package jitter

import (
	"fmt"
	"math/rand"
	"time"
)

// Options governs jitter for a single scheduling decision.
type Options struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	MaxPercent float64 `json:"max_percent" yaml:"max_percent"`
}

// Validate checks that MaxPercent lies in [0, 1].
func (o Options) Validate() error {
	if o.MaxPercent < 0 || o.MaxPercent > 1 {
		return fmt.Errorf("jitter: max_percent %v out of range [0, 1]", o.MaxPercent)
	}
	return nil
}

// Apply perturbs base by a uniform random fraction in
// [-MaxPercent, +MaxPercent], never returning a negative delay. Disabled
// options return base unchanged. Callers apply jitter once per scheduling
// decision so a computed fire time stays stable until the next recompute.
// rng may be nil, in which case the shared math/rand source is used.
func Apply(base time.Duration, opts Options, rng *rand.Rand) time.Duration {
	if !opts.Enabled || opts.MaxPercent == 0 || base <= 0 {
		return base
	}

	var f float64
	if rng != nil {
		f = rng.Float64()
	} else {
		f = rand.Float64()
	}
	fraction := (f*2 - 1) * opts.MaxPercent

	jittered := time.Duration(float64(base) * (1 + fraction))
	if jittered < 0 {
		return 0
	}
	return jittered
}
