package utils

import (
	"math"
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	b := Constant(40 * time.Millisecond)
	for _, retry := range []int{0, 3, 100} {
		if got := b.NextDelay(retry); got != 40*time.Millisecond {
			t.Fatalf("retry %d: expected 40ms, got %v", retry, got)
		}
	}
}

func TestLinearCapsAtCeiling(t *testing.T) {
	b := Linear(100*time.Millisecond, 250*time.Millisecond)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}
	for i, w := range want {
		if got := b.NextDelay(i); got != w {
			t.Errorf("retry %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestExponentialGrowth(t *testing.T) {
	b := Exponential(10*time.Millisecond, time.Second, 3, nil)
	if got := b.NextDelay(2); got != 90*time.Millisecond {
		t.Fatalf("expected 90ms, got %v", got)
	}
	if got := b.NextDelay(math.MaxInt32); got != time.Second {
		t.Fatalf("expected overflow to clamp to ceiling, got %v", got)
	}

	// a non-growing factor falls back to doubling
	if got := Exponential(10*time.Millisecond, time.Second, 1, nil).NextDelay(3); got != 80*time.Millisecond {
		t.Fatalf("expected 80ms, got %v", got)
	}
}

func TestExponentialJitterScalesCappedDelay(t *testing.T) {
	low := Exponential(100*time.Millisecond, 300*time.Millisecond, 2, func() float64 { return 0 })
	if got := low.NextDelay(5); got != 150*time.Millisecond {
		t.Fatalf("expected half of the 300ms ceiling, got %v", got)
	}
	high := Exponential(100*time.Millisecond, time.Second, 2, func() float64 { return 0.5 })
	if got := high.NextDelay(1); got != 200*time.Millisecond {
		t.Fatalf("expected unscaled 200ms, got %v", got)
	}
}

func TestNilBackoffNeverWaits(t *testing.T) {
	var b Backoff
	if got := b.NextDelay(4); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Constant(time.Second).NextDelay(-1); got != 0 {
		t.Fatalf("expected 0 for a negative retry, got %v", got)
	}
}

func TestParseBackoff(t *testing.T) {
	if got := ParseBackoff(BackoffConstant, 5*time.Millisecond, 0).NextDelay(9); got != 5*time.Millisecond {
		t.Errorf("constant: got %v", got)
	}
	if got := ParseBackoff(BackoffLinear, 20*time.Second, 0).NextDelay(4); got != defaultCeiling {
		t.Errorf("linear without ceiling should stop at %v, got %v", defaultCeiling, got)
	}
	for _, kind := range []string{BackoffExponential, "", "fibonacci"} {
		got := ParseBackoff(kind, 100*time.Millisecond, time.Second).NextDelay(0)
		if got < 50*time.Millisecond || got >= 150*time.Millisecond {
			t.Errorf("%q: jittered delay %v outside [50ms, 150ms)", kind, got)
		}
	}
}
