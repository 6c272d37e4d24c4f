package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prewarm/prewarm/pkg/backoff"
	"github.com/prewarm/prewarm/pkg/jitter"
)

func noopFetcher() Fetcher {
	return FetchFunc(func(ctx context.Context) (map[string]any, error) {
		return map[string]any{}, nil
	})
}

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		wantErr error
	}{
		{
			name: "valid scheduled",
			source: Source{
				ID:       "products",
				Strategy: StrategyScheduled,
				Schedule: "*/5 * * * *",
				Fetcher:  noopFetcher(),
			},
		},
		{
			name: "valid on-demand without schedule",
			source: Source{
				ID:       "sessions",
				Strategy: StrategyOnDemand,
				Fetcher:  noopFetcher(),
			},
		},
		{
			name:    "missing id",
			source:  Source{Strategy: StrategyOnDemand, Fetcher: noopFetcher()},
			wantErr: ErrSourceIDRequired,
		},
		{
			name:    "missing fetcher",
			source:  Source{ID: "a", Strategy: StrategyOnDemand},
			wantErr: ErrFetcherRequired,
		},
		{
			name:    "scheduled without schedule",
			source:  Source{ID: "a", Strategy: StrategyScheduled, Fetcher: noopFetcher()},
			wantErr: ErrScheduleRequired,
		},
		{
			name:    "unknown strategy",
			source:  Source{ID: "a", Strategy: "sometimes", Fetcher: noopFetcher()},
			wantErr: ErrInvalidStrategy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceValidateDefaults(t *testing.T) {
	s := Source{ID: "catalog", Schedule: "0 * * * *", Fetcher: noopFetcher()}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if s.Strategy != StrategyScheduled {
		t.Errorf("default strategy = %q, want %q", s.Strategy, StrategyScheduled)
	}
	if s.Name != "catalog" {
		t.Errorf("default name = %q, want id", s.Name)
	}
}

func TestSourceValidatePolicies(t *testing.T) {
	s := Source{
		ID:       "a",
		Strategy: StrategyOnDemand,
		Fetcher:  noopFetcher(),
		Jitter:   &jitter.Options{Enabled: true, MaxPercent: 2},
	}
	if err := s.Validate(); err == nil {
		t.Error("expected error for out-of-range jitter")
	}

	s = Source{
		ID:       "b",
		Strategy: StrategyOnDemand,
		Fetcher:  noopFetcher(),
		Backoff:  &backoff.Policy{Factor: 0.1},
	}
	if err := s.Validate(); err == nil {
		t.Error("expected error for invalid backoff policy")
	}
}

func TestTimezoneLocation(t *testing.T) {
	var nilTZ *TimezoneInfo
	if nilTZ.Location() != time.UTC {
		t.Error("nil timezone should resolve to UTC")
	}

	tz := &TimezoneInfo{Name: "IST", OffsetMinutes: 330}
	loc := tz.Location()
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).In(loc)
	if ref.Hour() != 5 || ref.Minute() != 30 {
		t.Errorf("midnight UTC in IST = %02d:%02d, want 05:30", ref.Hour(), ref.Minute())
	}

	unnamed := &TimezoneInfo{OffsetMinutes: -300}
	if got := unnamed.Location().String(); got != "UTC-5:00" {
		t.Errorf("generated zone name = %q, want UTC-5:00", got)
	}
}

func TestFetchFunc(t *testing.T) {
	called := false
	f := FetchFunc(func(ctx context.Context) (map[string]any, error) {
		called = true
		return map[string]any{"k": "v"}, nil
	})

	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !called || data["k"] != "v" {
		t.Error("FetchFunc did not delegate to the wrapped function")
	}
}
