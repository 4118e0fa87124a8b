// Package system provides the wall-clock implementation of intel.Clock.
package system

import "time"

// Clock implements intel.Clock using time.Now.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
