// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock returns UTC time truncated to microseconds, the resolution Postgres
// keeps for timestamptz, so stamped values round-trip unchanged.
type Clock struct{}

// New creates a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
