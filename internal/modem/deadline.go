package modem

import "time"

// Deadline is a fixed point in time against which blocking polls check
// themselves. Every bounded wait in the modem layer goes through one of
// these instead of ad hoc time arithmetic.
type Deadline struct {
	at time.Time
}

// NewDeadline returns a deadline d from now.
func NewDeadline(d time.Duration) Deadline {
	return Deadline{at: time.Now().Add(d)}
}

// Expired reports whether the deadline has passed.
func (d Deadline) Expired() bool {
	return !time.Now().Before(d.at)
}

// Remaining returns the time left, never negative.
func (d Deadline) Remaining() time.Duration {
	r := time.Until(d.at)
	if r < 0 {
		return 0
	}
	return r
}
