package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestManualClockAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	ch := clock.After(10 * time.Second)
	if got := clock.Waiters(); got != 1 {
		t.Fatalf("Waiters() = %d, want 1", got)
	}

	clock.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatalf("After fired before its deadline")
	default:
	}

	clock.Advance(5 * time.Second)
	select {
	case got := <-ch:
		if want := start.Add(10 * time.Second); !got.Equal(want) {
			t.Fatalf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatalf("After did not fire at its deadline")
	}
	if got := clock.Waiters(); got != 0 {
		t.Fatalf("Waiters() after firing = %d, want 0", got)
	}
}

func TestManualClockAfterNonPositiveFiresImmediately(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	select {
	case <-clock.After(0):
	default:
		t.Fatalf("After(0) should fire immediately")
	}
	if clock.Waiters() != 0 {
		t.Fatalf("After(0) should not register a waiter")
	}
}

func TestManualClockSetIgnoresBackwards(t *testing.T) {
	start := time.Unix(100, 0)
	clock := NewManualClock(start)
	clock.Set(time.Unix(50, 0))
	if !clock.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), start)
	}
	clock.Set(time.Unix(200, 0))
	if got := clock.Now(); !got.Equal(time.Unix(200, 0)) {
		t.Fatalf("Now() = %v, want 200s", got)
	}
}

func TestManualClockBlockUntil(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- clock.BlockUntil(ctx, 2)
	}()

	clock.After(time.Second)
	clock.After(2 * time.Second)

	if err := <-done; err != nil {
		t.Fatalf("BlockUntil returned %v", err)
	}
}

func TestManualClockBlockUntilHonoursContext(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := clock.BlockUntil(ctx, 1); err == nil {
		t.Fatalf("expected BlockUntil to time out")
	}
}

func TestWallClockAfter(t *testing.T) {
	clock := Wall()
	before := clock.Now()
	<-clock.After(5 * time.Millisecond)
	if elapsed := clock.Now().Sub(before); elapsed < 5*time.Millisecond {
		t.Fatalf("WallClock.After returned after %v, want >= 5ms", elapsed)
	}
}
