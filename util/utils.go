package util

import (
	"time"
)

/*
Utility functions.
*/

////////////////////////////////////////////////////////////////////////////////

// Pointer returns a pointer to a copy of v.
func Pointer[T any](v T) *T {
	return &v
}

// ParseNanos returns a time.Time from a nanosecond timestamp.
func ParseNanos(x uint64) time.Time {
	return time.Unix(int64(x/1e9), int64(x%1e9))
}

// FormatNanos renders a nanosecond timestamp as RFC3339 in UTC.
func FormatNanos(x uint64) string {
	return ParseNanos(x).UTC().Format(time.RFC3339Nano)
}
