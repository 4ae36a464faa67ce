package utils

import (
	"testing"
	"time"
)

func TestMillis(t *testing.T) {
	if got := Millis(1500); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", got)
	}
	if got := Millis(0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestDurationMs(t *testing.T) {
	if got := DurationMs(2500 * time.Microsecond); got != 2.5 {
		t.Fatalf("expected 2.5ms, got %v", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{0, "0s"},
		{1234567 * time.Nanosecond, "1ms"},
		{250 * time.Millisecond, "250ms"},
		{12345 * time.Millisecond, "12.35s"},
		{90*time.Minute + 1500*time.Millisecond, "1h30m2s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
