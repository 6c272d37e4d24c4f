package clock

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := New()
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v outside [%v, %v]", got, before, after)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Add(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !c.Now().Equal(want) {
		t.Errorf("Now() after Add = %v, want %v", c.Now(), want)
	}

	if c.Until(want.Add(time.Minute)) != time.Minute {
		t.Errorf("Until = %v, want 1m", c.Until(want.Add(time.Minute)))
	}
}

func TestMockTimerFires(t *testing.T) {
	c := NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	timer := c.NewTimer(10 * time.Second)

	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Add(10 * time.Second)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestMockTimerStop(t *testing.T) {
	c := NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	timer := c.NewTimer(time.Second)

	if !timer.Stop() {
		t.Error("Stop on pending timer should report true")
	}

	c.Add(2 * time.Second)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}

	if timer.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestMockTickerFires(t *testing.T) {
	c := NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Add(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	c.Add(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after second interval")
	}
}
