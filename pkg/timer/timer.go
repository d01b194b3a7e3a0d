// Package timer implements the rate-controlled tick source a Path's send
// thread drives its periodic emit/resend cycle from, with overrun
// counting: if a tick is missed because the send thread was still busy
// with the previous one, the next successful read reports how many ticks
// were missed instead of silently catching up one at a time.
//
// Grounded on the teacher's pkg/vm/linux vs pkg/vm/darwin split: a Linux
// implementation built directly on golang.org/x/sys/unix, a portable
// fallback for every other GOOS.
package timer

import "time"

// Timer is a periodic tick source reporting overrun counts.
type Timer interface {
	// Wait blocks until the next tick (or the first tick, if this is the
	// first call) and returns the number of additional ticks that expired
	// before Wait was called again (0 in the common case).
	Wait() (overrun uint64, err error)

	// Close releases the timer's resources.
	Close() error
}

// New builds a Timer firing at the given rate in Hz. New does not check
// rate; pkg/path only constructs a Timer when its rate is > 0.
func New(rate float64) (Timer, error) {
	return newPlatformTimer(rate)
}

func period(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}
