package util

import (
	"fmt"
	"time"
)

const (
	// ISO8601Format is the RFC3339 format used for timestamps on the wire
	// and in the database.
	ISO8601Format = time.RFC3339

	// ClockFormat is the short time format shown in the console.
	ClockFormat = "15:04:05"
)

// FormatISO8601 formats a time as an ISO8601/RFC3339 string in UTC.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(ISO8601Format)
}

// ParseISO8601 parses an ISO8601/RFC3339 string.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(ISO8601Format, s)
}

// RelativeTimeString renders the age of t for the console: "just now",
// "42s ago", "5m ago", "3h ago", "2d ago". Timestamps ahead of now, which
// happen when the backend clock runs fast, render as "in 5m". The zero time
// renders as "never".
func RelativeTimeString(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := now.Sub(t)
	if diff < 0 {
		return "in " + compactDuration(-diff)
	}
	if diff < 2*time.Second {
		return "just now"
	}
	return compactDuration(diff) + " ago"
}

func compactDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
