// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"io"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

const knotsToKmh = 1.852

// NMEASource reads NMEA sentences from the receiver's serial port and turns
// them into Samples. RMC carries position/speed/time, GGA carries altitude,
// satellite count and HDOP; one Sample is emitted per RMC with the most
// recent GGA values merged in.
type NMEASource struct {
	port    io.ReadCloser
	samples chan Sample
}

// OpenNMEA opens the GPS serial port and starts the reader.
func OpenNMEA(portName string, baudRate int) (*NMEASource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Printf("gps: serial port opened on %s at %d baud", portName, baudRate)

	src := &NMEASource{
		port:    port,
		samples: make(chan Sample, 16),
	}
	go src.readLoop()
	return src, nil
}

// Samples returns the channel of decoded samples. The reader never blocks on
// it; a sample arriving while the buffer is full is dropped in favor of
// fresher data.
func (s *NMEASource) Samples() <-chan Sample { return s.samples }

// Close stops the reader by closing the underlying port.
func (s *NMEASource) Close() error { return s.port.Close() }

func (s *NMEASource) readLoop() {
	defer close(s.samples)

	reader := bufio.NewReader(s.port)

	// GGA values carried over into the next RMC-driven sample.
	var (
		altitude   float64
		satellites int
		hdop       float64
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("gps: read error: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy receiver or partial sentence; skip it
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			altitude = m.Altitude
			satellites = int(m.NumSatellites)
			hdop = m.HDOP

		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if m.Validity != nmea.ValidRMC {
				continue
			}

			sample := Sample{
				Latitude:   m.Latitude,
				Longitude:  m.Longitude,
				AltitudeM:  altitude,
				SpeedKmh:   m.Speed * knotsToKmh,
				Satellites: satellites,
				HDOP:       hdop,
				Time:       rmcTime(m),
			}

			select {
			case s.samples <- sample:
			default:
			}
		}
	}
}

// rmcTime combines the RMC date and time fields into a UTC timestamp.
func rmcTime(m nmea.RMC) time.Time {
	return time.Date(
		2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second,
		m.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	)
}
