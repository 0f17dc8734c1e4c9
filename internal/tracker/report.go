package tracker

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/vehicle_tracker/internal/gps"
	"github.com/relabs-tech/vehicle_tracker/internal/health"
	"github.com/relabs-tech/vehicle_tracker/internal/stats"
)

const reportTimeLayout = "02/01/2006 15:04:05"

// FormatReport renders the outbound position report for the primary
// contact: identifier and route, coordinates to 6 decimal places, speed to
// 1, integer altitude, satellite count, timestamp, and a map link built
// from the same coordinates. Emergency and tracking modes add their
// annotation line.
func FormatReport(deviceID, routeName string, fix gps.Fix, mode Mode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", deviceID, routeName)
	switch mode {
	case Emergency:
		b.WriteString("*** EMERGENCY ***\n")
	case Tracking:
		b.WriteString("[tracking]\n")
	}
	fmt.Fprintf(&b, "Lat: %.6f\n", fix.Latitude)
	fmt.Fprintf(&b, "Lon: %.6f\n", fix.Longitude)
	fmt.Fprintf(&b, "Speed: %.1f km/h Alt: %d m Sats: %d\n",
		fix.SpeedKmh, int(fix.AltitudeM), fix.Satellites)
	fmt.Fprintf(&b, "Time: %s\n", fix.Time.Format(reportTimeLayout))
	fmt.Fprintf(&b, "https://maps.google.com/?q=%.6f,%.6f", fix.Latitude, fix.Longitude)
	return b.String()
}

// FormatStatus renders the STATUS command reply.
func FormatStatus(deviceID string, mode Mode, code StatusCode, fix gps.Fix,
	st health.Status, s stats.Statistics, tripKm float64, lastErr *health.Record) string {

	var b strings.Builder
	fmt.Fprintf(&b, "%s status: %s\n", deviceID, code)
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	if fix.Valid {
		fmt.Fprintf(&b, "Fix: ok (%d sats, hdop %.1f)\n", fix.Satellites, fix.HDOP)
	} else {
		b.WriteString("Fix: none\n")
	}
	fmt.Fprintf(&b, "GPS %s, modem %s\n", healthWord(st.GPSHealthy), healthWord(st.ModemHealthy))
	fmt.Fprintf(&b, "Sent: %d Errors: %d Max: %.1f km/h Trip: %.1f km",
		s.MessagesSent, s.ErrorCount, s.MaxSpeedKmh, tripKm)
	if lastErr != nil {
		fmt.Fprintf(&b, "\nLast error: %s", lastErr)
	}
	return b.String()
}

// FormatHealthAlert renders the report sent on the transition into
// unhealthy, naming the failed subsystem and the most recent logged error.
func FormatHealthAlert(deviceID string, st health.Status, lastErr *health.Record) string {
	var failed []string
	if !st.GPSHealthy {
		failed = append(failed, "GPS")
	}
	if !st.ModemHealthy {
		failed = append(failed, "modem")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s HEALTH ALERT\n", deviceID)
	fmt.Fprintf(&b, "Failed: %s", strings.Join(failed, ", "))
	if lastErr != nil {
		fmt.Fprintf(&b, "\nLast error: %s", lastErr)
	}
	return b.String()
}

// FormatHelp lists the recognized commands.
func FormatHelp(deviceID string) string {
	return deviceID + " commands:\n" +
		"TRACK ON | TRACK OFF\n" +
		"EMERGENCY OFF\n" +
		"STATUS | LOCATION\n" +
		"TEST | HELP | REBOOT"
}

func healthWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
