package tracker

import (
	"fmt"
	"time"
)

// Mode is the operational mode governing report cadence and alert framing.
// Exactly one mode is active at a time. Emergency is sticky: it is entered
// by the panic trigger or sustained health failure and only the
// EMERGENCY OFF command exits it.
type Mode int

const (
	Normal Mode = iota
	Tracking
	Emergency
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Tracking:
		return "tracking"
	case Emergency:
		return "emergency"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ReportInterval is the scheduled report period for a mode. Total and
// deterministic.
func (m Mode) ReportInterval() time.Duration {
	switch m {
	case Tracking:
		return 60 * time.Second
	case Emergency:
		return 30 * time.Second
	default:
		return 300 * time.Second
	}
}

// StatusCode is the symbolic externally visible status, rendered by the
// indicator collaborator (display/console); the core only emits the code.
type StatusCode int

const (
	StatusWaitingForFix StatusCode = iota
	StatusFixedOK
	StatusError
	StatusEmergency
)

func (s StatusCode) String() string {
	switch s {
	case StatusWaitingForFix:
		return "waiting-for-fix"
	case StatusFixedOK:
		return "fixed-ok"
	case StatusError:
		return "error"
	case StatusEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("StatusCode(%d)", int(s))
	}
}
