package health

import (
	"time"
)

// Status is the outcome of one health check. Recomputed each tick, never
// persisted.
type Status struct {
	GPSHealthy   bool `json:"gps_healthy"`
	ModemHealthy bool `json:"modem_healthy"`
	Overall      bool `json:"overall"`
}

// Prober issues a liveness command with a bounded deadline. Satisfied by
// *modem.Channel.
type Prober interface {
	Probe(timeout time.Duration) bool
}

const (
	// CheckPeriod is the fixed interval between health evaluations.
	CheckPeriod = 60 * time.Second

	// ProbeTimeout keeps the liveness probe short so a dead modem cannot
	// stall the loop anywhere near the watchdog period.
	ProbeTimeout = 2 * time.Second
)

// Monitor aggregates subsystem liveness on a fixed period and detects the
// transition into unhealthy.
type Monitor struct {
	prober      Prober
	lastCheck   time.Time
	lastOverall bool
}

// NewMonitor anchors the check period at now. The device starts out
// presumed healthy so the first failing evaluation is a transition.
func NewMonitor(p Prober, now time.Time) *Monitor {
	return &Monitor{prober: p, lastCheck: now, lastOverall: true}
}

// Due reports whether a check period has elapsed since the last evaluation.
func (m *Monitor) Due(now time.Time) bool {
	return now.Sub(m.lastCheck) >= CheckPeriod
}

// Evaluate re-derives subsystem health: GPS from the current fix state and
// satellite count, modem from a fresh liveness probe. It returns the status
// and whether this evaluation transitioned overall health into unhealthy,
// which is what triggers a health alert.
func (m *Monitor) Evaluate(fixed bool, satellites int, now time.Time) (Status, bool) {
	st := Status{
		GPSHealthy:   fixed && satellites >= 4,
		ModemHealthy: m.prober.Probe(ProbeTimeout),
	}
	st.Overall = st.GPSHealthy && st.ModemHealthy

	becameUnhealthy := m.lastOverall && !st.Overall
	m.lastOverall = st.Overall
	m.lastCheck = now
	return st, becameUnhealthy
}
