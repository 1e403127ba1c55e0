// Package clock abstracts time so throttling, lock expiry and the
// reconciliation loop can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by the record layer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real implements Clock using the standard library.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// After mirrors time.After.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Ensure returns c, or Real when c is nil.
func Ensure(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
