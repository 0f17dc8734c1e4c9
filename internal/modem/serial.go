// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modem

import (
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// OpenPort opens the modem serial port. MinimumReadSize 0 with an
// inter-character timeout makes Read return (possibly empty) after a short
// quiet period, which is what the channel's polling loop needs.
func OpenPort(portName string, baudRate int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100, // milliseconds
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Printf("modem: serial port opened on %s at %d baud", portName, baudRate)
	return port, nil
}
