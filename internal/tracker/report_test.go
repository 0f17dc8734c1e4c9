package tracker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vehicle_tracker/internal/gps"
	"github.com/relabs-tech/vehicle_tracker/internal/health"
	"github.com/relabs-tech/vehicle_tracker/internal/stats"
)

func reportFix() gps.Fix {
	return gps.Fix{
		Sample: gps.Sample{
			Latitude:   52.520008,
			Longitude:  13.404954,
			AltitudeM:  41.7,
			SpeedKmh:   63.25,
			Satellites: 8,
			HDOP:       0.9,
			Time:       time.Date(2026, 8, 29, 14, 5, 9, 0, time.UTC),
		},
		Valid: true,
	}
}

func TestFormatReportNormal(t *testing.T) {
	got := FormatReport("VT-01", "Route 7", reportFix(), Normal)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "VT-01 Route 7", lines[0])
	assert.Equal(t, "Lat: 52.520008", lines[1])
	assert.Equal(t, "Lon: 13.404954", lines[2])
	assert.Equal(t, "Speed: 63.2 km/h Alt: 41 m Sats: 8", lines[3])
	assert.Equal(t, "Time: 29/08/2026 14:05:09", lines[4])
	assert.Equal(t, "https://maps.google.com/?q=52.520008,13.404954", lines[5])
}

func TestFormatReportAnnotations(t *testing.T) {
	assert.Contains(t, FormatReport("VT-01", "Route 7", reportFix(), Emergency),
		"*** EMERGENCY ***\n")
	assert.Contains(t, FormatReport("VT-01", "Route 7", reportFix(), Tracking),
		"[tracking]\n")
	assert.NotContains(t, FormatReport("VT-01", "Route 7", reportFix(), Normal),
		"EMERGENCY")
}

func TestFormatStatus(t *testing.T) {
	st := health.Status{GPSHealthy: true, ModemHealthy: false}
	s := stats.Statistics{MessagesSent: 12, ErrorCount: 3, MaxSpeedKmh: 101.5}
	lastErr := &health.Record{Kind: health.SMSSendTimeout, Message: "no final response within 15s"}

	got := FormatStatus("VT-01", Tracking, StatusFixedOK, reportFix(), st, s, 42.195, lastErr)

	assert.Contains(t, got, "VT-01 status: fixed-ok")
	assert.Contains(t, got, "Mode: tracking")
	assert.Contains(t, got, "Fix: ok (8 sats, hdop 0.9)")
	assert.Contains(t, got, "GPS ok, modem FAIL")
	assert.Contains(t, got, "Sent: 12 Errors: 3 Max: 101.5 km/h Trip: 42.2 km")
	assert.Contains(t, got, "Last error: sms send timeout: no final response within 15s")
}

func TestFormatStatusNoFixNoError(t *testing.T) {
	got := FormatStatus("VT-01", Normal, StatusWaitingForFix, gps.Fix{},
		health.Status{GPSHealthy: true, ModemHealthy: true}, stats.Statistics{}, 0, nil)

	assert.Contains(t, got, "Fix: none")
	assert.NotContains(t, got, "Last error")
}

func TestFormatHealthAlert(t *testing.T) {
	st := health.Status{GPSHealthy: false, ModemHealthy: false}
	got := FormatHealthAlert("VT-01", st, nil)
	assert.Contains(t, got, "VT-01 HEALTH ALERT")
	assert.Contains(t, got, "Failed: GPS, modem")

	st = health.Status{GPSHealthy: true, ModemHealthy: false}
	lastErr := &health.Record{Kind: health.ModemCommandTimeout, Message: "probe"}
	got = FormatHealthAlert("VT-01", st, lastErr)
	assert.Contains(t, got, "Failed: modem")
	assert.Contains(t, got, "Last error: modem command timeout: probe")
}

func TestFormatHelpListsVocabulary(t *testing.T) {
	got := FormatHelp("VT-01")
	for _, verb := range []string{"TRACK ON", "TRACK OFF", "EMERGENCY OFF", "STATUS", "LOCATION", "TEST", "HELP", "REBOOT"} {
		assert.Contains(t, got, verb)
	}
}
