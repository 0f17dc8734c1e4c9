package gps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodSample() Sample {
	return Sample{
		Latitude:   52.5200,
		Longitude:  13.4050,
		AltitudeM:  40,
		SpeedKmh:   50,
		Satellites: 8,
		HDOP:       0.9,
		Time:       time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestValidatorRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sample)
	}{
		{"latitude out of range", func(s *Sample) { s.Latitude = 91 }},
		{"latitude far out of range", func(s *Sample) { s.Latitude = -123.4 }},
		{"longitude out of range", func(s *Sample) { s.Longitude = 180.5 }},
		{"null island", func(s *Sample) { s.Latitude, s.Longitude = 0, 0 }},
		{"speed negative", func(s *Sample) { s.SpeedKmh = -1 }},
		{"speed too high", func(s *Sample) { s.SpeedKmh = 201 }},
		{"too few satellites", func(s *Sample) { s.Satellites = 3 }},
		{"hdop too high", func(s *Sample) { s.HDOP = 2.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			v := NewValidator(now)

			// establish a fix first so we can see it is unchanged
			_, err := v.Offer(goodSample(), now)
			require.NoError(t, err)
			before := v.Current()

			bad := goodSample()
			tt.mutate(&bad)
			ev, err := v.Offer(bad, now.Add(time.Second))

			assert.Error(t, err)
			assert.Equal(t, EventNone, ev)
			assert.Equal(t, before, v.Current(), "rejected sample must not update the fix")
			assert.True(t, v.Fixed())
		})
	}
}

func TestValidatorBoundaryValuesAccepted(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sample)
	}{
		{"latitude at limit", func(s *Sample) { s.Latitude = 90 }},
		{"longitude at limit", func(s *Sample) { s.Longitude = -180 }},
		{"speed at limit", func(s *Sample) { s.SpeedKmh = 200 }},
		{"speed zero", func(s *Sample) { s.SpeedKmh = 0 }},
		{"minimum satellites", func(s *Sample) { s.Satellites = 4 }},
		{"hdop at limit", func(s *Sample) { s.HDOP = 2.0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			v := NewValidator(now)
			s := goodSample()
			tt.mutate(&s)

			_, err := v.Offer(s, now)
			assert.NoError(t, err)
			assert.True(t, v.Fixed())
		})
	}
}

func TestValidatorFirstFixEvent(t *testing.T) {
	now := time.Now()
	v := NewValidator(now)

	assert.False(t, v.Fixed())
	assert.False(t, v.Current().Valid)

	ev, err := v.Offer(goodSample(), now)
	require.NoError(t, err)
	assert.Equal(t, EventFixAcquired, ev)
	assert.True(t, v.Fixed())
	assert.True(t, v.Current().Valid)

	// subsequent accepted samples are not transitions
	ev, err = v.Offer(goodSample(), now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, EventNone, ev)
}

func TestValidatorFixLost(t *testing.T) {
	now := time.Now()
	v := NewValidator(now)

	_, err := v.Offer(goodSample(), now)
	require.NoError(t, err)

	// quiet for just under the window: still fixed
	assert.Equal(t, EventNone, v.Tick(now.Add(FixLostAfter-time.Second)))
	assert.True(t, v.Fixed())

	// window elapsed: one fix-lost transition
	assert.Equal(t, EventFixLost, v.Tick(now.Add(FixLostAfter)))
	assert.False(t, v.Fixed())
	assert.False(t, v.Current().Valid)

	// no repeated event while still unfixed
	assert.Equal(t, EventNone, v.Tick(now.Add(FixLostAfter+time.Minute)))

	// reacquisition is a fresh transition
	ev, err := v.Offer(goodSample(), now.Add(2*FixLostAfter))
	require.NoError(t, err)
	assert.Equal(t, EventFixAcquired, ev)
}

func TestValidatorAcquisitionTimeout(t *testing.T) {
	now := time.Now()
	v := NewValidator(now)

	assert.Equal(t, EventNone, v.Tick(now.Add(AcquisitionTimeout-time.Second)))

	// raised exactly once, and the validator keeps running
	assert.Equal(t, EventAcquisitionTimeout, v.Tick(now.Add(AcquisitionTimeout)))
	assert.Equal(t, EventNone, v.Tick(now.Add(AcquisitionTimeout+time.Minute)))

	// a late fix still works normally
	ev, err := v.Offer(goodSample(), now.Add(AcquisitionTimeout+2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, EventFixAcquired, ev)
}

func TestValidatorNoTimeoutAfterAccept(t *testing.T) {
	now := time.Now()
	v := NewValidator(now)

	_, err := v.Offer(goodSample(), now.Add(time.Second))
	require.NoError(t, err)

	// fix was lost again, but the one-shot startup timeout must not fire
	assert.Equal(t, EventFixLost, v.Tick(now.Add(time.Minute)))
	assert.Equal(t, EventNone, v.Tick(now.Add(AcquisitionTimeout+time.Hour)))
}
