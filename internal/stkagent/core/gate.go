package core

import "time"

// ShouldFetch reports whether a new upstream request is allowed. A zero
// last means no attempt was ever made.
func ShouldFetch(last time.Time, minInterval time.Duration, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= minInterval
}
