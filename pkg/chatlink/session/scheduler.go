package session

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Scheduler schedules the delayed reconnect. Tests substitute a virtual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock is the Scheduler backed by time.AfterFunc.
var WallClock Scheduler = wallClock{}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
