package util

import (
	"strconv"
	"time"
)

// Epoch-millisecond boundary below which an integer timestamp is read as
// seconds. 1e11 ms is in 1973, 1e11 s is past year 5000, so the ranges never
// overlap for plausible data.
const millisThreshold = int64(1e11)

// UnixMillis returns the canonical wire representation of a timestamp.
func UnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts the canonical wire representation back to time.Time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ParseTimestamp normalizes the timestamp shapes produced by older writers:
// RFC3339 strings, RFC3339Nano strings, epoch seconds, and epoch milliseconds.
// Returns (t, true) if any shape matched.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts >= millisThreshold {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimestampDefault parses a timestamp or returns default if empty/invalid.
func ParseTimestampDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTimestamp(s); ok {
		return t
	}
	return def
}
