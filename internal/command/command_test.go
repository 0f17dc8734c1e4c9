package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbs(t *testing.T) {
	tests := []struct {
		raw    string
		action Action
	}{
		{"TRACK ON", ActionTrackOn},
		{"TRACK OFF", ActionTrackOff},
		{"EMERGENCY OFF", ActionEmergencyOff},
		{"STATUS", ActionStatus},
		{"LOCATION", ActionLocation},
		{"TEST", ActionTest},
		{"HELP", ActionHelp},
		{"REBOOT", ActionReboot},
	}
	for _, tt := range tests {
		cmd, ok := Parse(tt.raw)
		require.True(t, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.action, cmd.Action, "raw %q", tt.raw)
		assert.Equal(t, tt.raw, cmd.Raw)
	}
}

func TestParseCaseAndWhitespace(t *testing.T) {
	for _, raw := range []string{"track on", "Track On", "  track    ON  ", "TRACK\ton"} {
		cmd, ok := Parse(raw)
		require.True(t, ok, "raw %q", raw)
		assert.Equal(t, ActionTrackOn, cmd.Action, "raw %q", raw)
	}
}

func TestParseVerbInsideNoise(t *testing.T) {
	cmd, ok := Parse("hi, please send me the STATUS of the van")
	require.True(t, ok)
	assert.Equal(t, ActionStatus, cmd.Action)
	assert.Equal(t, "OF THE VAN", cmd.Argument)
}

func TestParseMultiWordNotShadowed(t *testing.T) {
	// "TRACK OFF" must not resolve to a bare TRACK verb
	cmd, ok := Parse("track off")
	require.True(t, ok)
	assert.Equal(t, ActionTrackOff, cmd.Action)

	cmd, ok = Parse("emergency off now")
	require.True(t, ok)
	assert.Equal(t, ActionEmergencyOff, cmd.Action)
	assert.Equal(t, "NOW", cmd.Argument)
}

func TestParseUnrecognized(t *testing.T) {
	for _, raw := range []string{"", "hello", "TRACKING", "stop", "emergency"} {
		cmd, ok := Parse(raw)
		assert.False(t, ok, "raw %q", raw)
		assert.Equal(t, ActionNone, cmd.Action, "raw %q", raw)
	}
}
