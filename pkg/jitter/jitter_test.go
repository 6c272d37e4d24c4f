package jitter

import (
	"math/rand"
	"testing"
	"time"
)

func TestApplyDisabled(t *testing.T) {
	base := 1000 * time.Millisecond
	opts := Options{Enabled: false, MaxPercent: 0.5}

	for i := 0; i < 10; i++ {
		if got := Apply(base, opts, nil); got != base {
			t.Fatalf("Apply with jitter disabled = %v, want %v", got, base)
		}
	}
}

func TestApplyZeroPercent(t *testing.T) {
	base := 30 * time.Second
	if got := Apply(base, Options{Enabled: true, MaxPercent: 0}, nil); got != base {
		t.Errorf("Apply with max_percent 0 = %v, want %v", got, base)
	}
}

func TestApplyWithinBounds(t *testing.T) {
	base := 10 * time.Second
	opts := Options{Enabled: true, MaxPercent: 0.2}
	rng := rand.New(rand.NewSource(42))

	lo := time.Duration(float64(base) * 0.8)
	hi := time.Duration(float64(base) * 1.2)

	for i := 0; i < 1000; i++ {
		got := Apply(base, opts, rng)
		if got < lo || got > hi {
			t.Fatalf("Apply = %v outside [%v, %v]", got, lo, hi)
		}
	}
}

func TestApplyVaries(t *testing.T) {
	base := 10 * time.Second
	opts := Options{Enabled: true, MaxPercent: 0.5}
	rng := rand.New(rand.NewSource(1))

	first := Apply(base, opts, rng)
	for i := 0; i < 100; i++ {
		if Apply(base, opts, rng) != first {
			return
		}
	}
	t.Error("Apply never varied across 100 draws")
}

func TestApplyNonPositiveBase(t *testing.T) {
	opts := Options{Enabled: true, MaxPercent: 1}
	if got := Apply(0, opts, nil); got != 0 {
		t.Errorf("Apply(0) = %v, want 0", got)
	}
	if got := Apply(-time.Second, opts, nil); got != -time.Second {
		t.Errorf("Apply(-1s) = %v, want unchanged", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero", Options{}, false},
		{"half", Options{Enabled: true, MaxPercent: 0.5}, false},
		{"full", Options{Enabled: true, MaxPercent: 1}, false},
		{"negative", Options{MaxPercent: -0.1}, true},
		{"over one", Options{MaxPercent: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
