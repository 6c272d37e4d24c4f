package cron

import (
	"errors"
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	// 2024-01-15 10:30:00 UTC is a Monday.
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec string
		from time.Time
		want time.Time
	}{
		{
			name: "every minute",
			spec: "* * * * *",
			from: base,
			want: time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
		},
		{
			name: "top of next hour",
			spec: "0 * * * *",
			from: base,
			want: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "daily at midnight",
			spec: "0 0 * * *",
			from: base,
			want: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "next monday noon skips to following week",
			spec: "0 12 * * 1",
			from: time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 22, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "same day match later today",
			spec: "0 12 * * 1",
			from: base,
			want: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "sub-minute remainder rounds up",
			spec: "* * * * *",
			from: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
			want: time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
		},
		{
			name: "exact boundary is strictly after",
			spec: "*/5 * * * *",
			from: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			want: time.Date(2024, 1, 15, 10, 35, 0, 0, time.UTC),
		},
		{
			name: "month rollover",
			spec: "0 0 1 * *",
			from: base,
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "yearly",
			spec: "0 0 1 1 *",
			from: base,
			want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "leap day",
			spec: "0 0 29 2 *",
			from: base,
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := MustParse(tt.spec)
			got, err := expr.Next(tt.from, time.UTC)
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next(%q, %v) = %v, want %v", tt.spec, tt.from, got, tt.want)
			}
		})
	}
}

func TestNextEveryFiveIsAlignedAndStrictlyAfter(t *testing.T) {
	expr := MustParse("*/5 * * * *")
	from := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		next, err := expr.Next(from, time.UTC)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !next.After(from) {
			t.Fatalf("Next = %v not strictly after %v", next, from)
		}
		if next.Minute()%5 != 0 || next.Second() != 0 {
			t.Fatalf("Next = %v not on a 5-minute boundary", next)
		}
		from = next
	}
}

func TestNextFixedOffsetZone(t *testing.T) {
	// 05:30 ahead of UTC; local 09:00 is 03:30 UTC.
	ist := time.FixedZone("IST", 330*60)
	expr := MustParse("0 9 * * *")

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	next, err := expr.Next(from, ist)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want := time.Date(2024, 6, 1, 3, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next in IST = %v, want %v", next, want)
	}
	if next.Location() != time.UTC {
		t.Errorf("Next should be UTC-normalized, got %v", next.Location())
	}
}

// The day-of-month/day-of-week OR rule is the conventional cron reading; the
// combination is not spelled out anywhere authoritative, so pin it here.
func TestNextDayFieldsCombineWithOr(t *testing.T) {
	// Day 13 of the month OR any Friday.
	expr := MustParse("0 0 13 * 5")

	from := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC) // Sunday Sep 1
	var got []time.Time
	for i := 0; i < 3; i++ {
		next, err := expr.Next(from, time.UTC)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, next)
		from = next
	}

	want := []time.Time{
		time.Date(2024, 9, 6, 0, 0, 0, 0, time.UTC),  // Friday
		time.Date(2024, 9, 13, 0, 0, 0, 0, time.UTC), // Friday the 13th
		time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC), // Friday
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("run %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextOnlyDomRestricted(t *testing.T) {
	expr := MustParse("0 0 15 * *")
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := expr.Next(from, time.UTC)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextImpossibleExpression(t *testing.T) {
	expr := MustParse("0 0 30 2 *")
	_, err := expr.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	var serr *ScheduleError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ScheduleError, got %v", err)
	}
}

func TestMinInterval(t *testing.T) {
	tests := []struct {
		spec string
		want time.Duration
	}{
		{"*/5 * * * *", 5 * time.Minute},
		{"0,15,30,45 * * * *", 15 * time.Minute},
		{"1-10/2 * * * *", 2 * time.Minute},
		{"* * * * *", time.Minute},
		{"0 * * * *", time.Hour},
		{"0 0,12 * * *", time.Hour},
		// A restricted minute field wins the fall-through even for daily
		// schedules: its circular gap is the field period.
		{"30 6 * * *", time.Hour},
		{"5 * * * *", time.Hour},
		{"* 0,12 * * *", 12 * time.Hour},
		{"* * 1,15 * *", 14 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := MustParse(tt.spec).MinInterval()
			if got != tt.want {
				t.Errorf("MinInterval(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}
