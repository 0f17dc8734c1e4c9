package gps

import (
	"fmt"
	"math"
	"time"
)

// Acceptance limits for raw samples. A sample failing any of these is
// rejected and does not become the current Fix.
const (
	MaxLatitudeDeg  = 90.0
	MaxLongitudeDeg = 180.0
	MaxSpeedKmh     = 200.0
	MinSatellites   = 4
	MaxHDOP         = 2.0
)

// Fix state timing.
const (
	// FixLostAfter is how long the validator waits for an accepted sample
	// before declaring the fix lost.
	FixLostAfter = 30 * time.Second

	// AcquisitionTimeout is the one-shot startup window: if no sample is
	// ever accepted within it, an acquisition timeout is reported once.
	AcquisitionTimeout = 180 * time.Second
)

// Event signals a fix state transition observed by the validator.
type Event int

const (
	EventNone Event = iota
	// EventFixAcquired fires on the NoFix -> Fixed transition. The caller
	// sends an immediate report, independent of the normal interval.
	EventFixAcquired
	// EventFixLost fires when no sample was accepted for FixLostAfter.
	EventFixLost
	// EventAcquisitionTimeout fires at most once if nothing was accepted
	// within AcquisitionTimeout from startup.
	EventAcquisitionTimeout
)

// Validator filters raw samples into the current Fix and tracks the
// NoFix/Fixed state. All methods take explicit times; the validator never
// reads the wall clock, which keeps the state machine testable.
type Validator struct {
	current       Fix
	previous      Fix
	fixed         bool
	everAccepted  bool
	lastAccept    time.Time
	startedAt     time.Time
	timeoutRaised bool
}

// NewValidator returns a validator with the acquisition window anchored at now.
func NewValidator(now time.Time) *Validator {
	return &Validator{startedAt: now}
}

// checkSample applies the acceptance predicate to one raw sample.
func checkSample(s Sample) error {
	if math.Abs(s.Latitude) > MaxLatitudeDeg {
		return fmt.Errorf("latitude %.6f out of range", s.Latitude)
	}
	if math.Abs(s.Longitude) > MaxLongitudeDeg {
		return fmt.Errorf("longitude %.6f out of range", s.Longitude)
	}
	if s.Latitude == 0 && s.Longitude == 0 {
		return fmt.Errorf("null island coordinates")
	}
	if s.SpeedKmh < 0 || s.SpeedKmh > MaxSpeedKmh {
		return fmt.Errorf("speed %.1f km/h out of range", s.SpeedKmh)
	}
	if s.Satellites < MinSatellites {
		return fmt.Errorf("only %d satellites", s.Satellites)
	}
	if s.HDOP > MaxHDOP {
		return fmt.Errorf("hdop %.2f too high", s.HDOP)
	}
	return nil
}

// Offer feeds one raw sample. On rejection it returns a non-nil error naming
// the failed predicate and leaves the current Fix unchanged. On acceptance it
// updates the current Fix and returns EventFixAcquired if this sample ended a
// NoFix period.
func (v *Validator) Offer(s Sample, now time.Time) (Event, error) {
	if err := checkSample(s); err != nil {
		return EventNone, err
	}

	v.previous = v.current
	v.current = Fix{Sample: s, Valid: true}
	v.lastAccept = now
	v.everAccepted = true

	if !v.fixed {
		v.fixed = true
		return EventFixAcquired, nil
	}
	return EventNone, nil
}

// Tick advances time-based state. It returns EventFixLost on the
// Fixed -> NoFix transition and EventAcquisitionTimeout (once) if no sample
// was ever accepted within the startup window.
func (v *Validator) Tick(now time.Time) Event {
	if v.fixed {
		if now.Sub(v.lastAccept) >= FixLostAfter {
			v.fixed = false
			v.current.Valid = false
			return EventFixLost
		}
		return EventNone
	}

	if !v.everAccepted && !v.timeoutRaised && now.Sub(v.startedAt) >= AcquisitionTimeout {
		v.timeoutRaised = true
		return EventAcquisitionTimeout
	}
	return EventNone
}

// Fixed reports whether a valid fix is currently held.
func (v *Validator) Fixed() bool { return v.fixed }

// Current returns the current Fix. Valid is false while NoFix.
func (v *Validator) Current() Fix { return v.current }

// Previous returns the fix superseded by the current one, for trip
// bookkeeping.
func (v *Validator) Previous() Fix { return v.previous }
