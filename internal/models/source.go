// Package models defines the core data structures for Prewarm.
package models

import (
	"context"
	"fmt"
	"time"

	"github.com/prewarm/prewarm/pkg/backoff"
	"github.com/prewarm/prewarm/pkg/duration"
	"github.com/prewarm/prewarm/pkg/jitter"
)

// Duration is an alias for the shared duration.Duration type.
type Duration = duration.Duration

// Strategy selects how a warming source is driven.
type Strategy string

const (
	// StrategyOnDemand sources warm only when triggered explicitly.
	StrategyOnDemand Strategy = "on_demand"
	// StrategyScheduled sources are driven by the cron engine.
	StrategyScheduled Strategy = "scheduled"
	// StrategyEager sources warm once as soon as the scheduler starts.
	StrategyEager Strategy = "eager"
)

// Valid reports whether s is a recognized strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOnDemand, StrategyScheduled, StrategyEager:
		return true
	}
	return false
}

// TimezoneInfo names a fixed UTC offset for schedule evaluation. The offset
// is a snapshot taken at registration time; DST transitions are not modeled,
// so zones that observe DST need re-registration when the offset changes.
type TimezoneInfo struct {
	Name          string `json:"name" yaml:"name"`
	OffsetMinutes int    `json:"offset_minutes" yaml:"offset_minutes"`
}

// Location returns the fixed-offset *time.Location for schedule math.
func (tz *TimezoneInfo) Location() *time.Location {
	if tz == nil || (tz.Name == "" && tz.OffsetMinutes == 0) {
		return time.UTC
	}
	name := tz.Name
	if name == "" {
		name = fmt.Sprintf("UTC%+d:%02d", tz.OffsetMinutes/60, abs(tz.OffsetMinutes%60))
	}
	return time.FixedZone(name, tz.OffsetMinutes*60)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Fetcher produces the data a warming source writes into the cache. A
// fetcher must tolerate repeated invocation; the scheduler re-executes it on
// every warm cycle and on retries.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context) (map[string]any, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context) (map[string]any, error) {
	return f(ctx)
}

// Source is a registered cache-warming unit. The definition is immutable
// once registered; runtime state (next run, failure counts) is owned by the
// scheduler, not stored here.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Namespace   string `json:"namespace,omitempty"`
	Description string `json:"description,omitempty"`

	// TTL is passed through to the cache backend on every write.
	TTL Duration `json:"ttl,omitempty"`

	Strategy Strategy `json:"strategy"`

	// Schedule is a cron expression; required for scheduled sources.
	Schedule string        `json:"schedule,omitempty"`
	Timezone *TimezoneInfo `json:"timezone,omitempty"`

	Jitter  *jitter.Options `json:"jitter,omitempty"`
	Backoff *backoff.Policy `json:"backoff,omitempty"`

	// Dependencies lists source IDs that must be warmed first.
	Dependencies []string `json:"dependencies,omitempty"`

	Fetcher Fetcher `json:"-" yaml:"-"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the static definition. Schedule text is validated by the
// registry, which owns the parsed form.
func (s *Source) Validate() error {
	if s.ID == "" {
		return ErrSourceIDRequired
	}
	if s.Fetcher == nil {
		return ErrFetcherRequired
	}
	if s.Strategy == "" {
		s.Strategy = StrategyScheduled
	}
	if !s.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, s.Strategy)
	}
	if s.Strategy == StrategyScheduled && s.Schedule == "" {
		return ErrScheduleRequired
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.TTL < 0 {
		return fmt.Errorf("source %s: ttl must not be negative", s.ID)
	}
	if s.Jitter != nil {
		if err := s.Jitter.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", s.ID, err)
		}
	}
	if s.Backoff != nil {
		if err := s.Backoff.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", s.ID, err)
		}
	}
	return nil
}
