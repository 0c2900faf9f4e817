// Package clock abstracts the time operations used by the activity tracker so
// timer-driven behaviour can be tested deterministically.
package clock

import "time"

// Clock is the subset of the time package the console needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f in its own goroutine (real) or
	// synchronously during Advance (fake).
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call. It returns false if the timer already fired or
	// was stopped.
	Stop() bool

	// Reset reschedules the call to d from now and returns whether the timer
	// was still pending.
	Reset(d time.Duration) bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
