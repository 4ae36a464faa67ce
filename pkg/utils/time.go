package utils

import "time"

// Millis converts a configured millisecond count to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// DurationMs reports d in fractional milliseconds, the unit metrics use
func DurationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatElapsed renders a run or call duration for logs and the CLI.
// Sub-second values keep millisecond precision, longer ones are rounded
// so a multi-hour run does not print nanoseconds.
func FormatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Hour:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
