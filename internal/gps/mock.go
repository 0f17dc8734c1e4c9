// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"math"
	"time"
)

// mockSource generates a smooth synthetic drive for bench runs without a
// receiver: a slow loop around a fixed center with a plausible speed
// profile. Selected by setting GPS_SERIAL_PORT=mock.
type mockSource struct {
	samples chan Sample
	done    chan struct{}
}

const (
	mockCenterLat = 52.5200
	mockCenterLon = 13.4050
	mockRadiusDeg = 0.02
)

// NewMockSource starts a synthetic sample generator emitting one sample per
// second.
func NewMockSource() Source {
	m := &mockSource{
		samples: make(chan Sample, 16),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mockSource) Samples() <-chan Sample { return m.samples }

func (m *mockSource) Close() error {
	close(m.done)
	return nil
}

func (m *mockSource) run() {
	defer close(m.samples)

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(start).Seconds()
			angle := elapsed / 120 * 2 * math.Pi // one lap every two minutes

			s := Sample{
				Latitude:   mockCenterLat + mockRadiusDeg*math.Sin(angle),
				Longitude:  mockCenterLon + mockRadiusDeg*math.Cos(angle),
				AltitudeM:  40 + 5*math.Sin(elapsed/30),
				SpeedKmh:   45 + 20*math.Sin(elapsed/15),
				Satellites: 8,
				HDOP:       0.9,
				Time:       now.UTC(),
			}
			select {
			case m.samples <- s:
			default:
			}
		}
	}
}
