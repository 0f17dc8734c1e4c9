// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ResultKind classifies the modem's reply to one command.
type ResultKind int

const (
	// Ack means the accumulated reply contained the success token "OK".
	Ack ResultKind = iota
	// Fail means the reply contained the failure token "ERROR".
	Fail
	// Timeout means neither token arrived before the caller's deadline.
	Timeout
)

func (k ResultKind) String() string {
	switch k {
	case Ack:
		return "ack"
	case Fail:
		return "fail"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the classified outcome of one Execute call.
type Result struct {
	Kind ResultKind
	Text string // accumulated reply, trimmed
}

// ErrBusy is returned when Execute is called while a previous command is
// still in flight. The channel is strictly one command at a time; hitting
// this is a programming error in the caller.
var ErrBusy = errors.New("modem: command already in flight")

const (
	writeTerminator = "\r\n"
	pollInterval    = 20 * time.Millisecond
	resetHold       = 200 * time.Millisecond
	resetSettle     = 3 * time.Second
)

// Channel drives the line-oriented command/response protocol on the modem's
// serial link. One command is outstanding at any time, so every reply is
// attributable to the most recent command without correlation ids.
//
// The port must return from Read after a short inter-character timeout
// (possibly with zero bytes) rather than blocking forever; OpenPort sets
// this up for the real serial device.
type Channel struct {
	port  io.ReadWriter
	reset gpio.PinOut // may be nil when no reset line is wired

	busy    bool
	ready   bool
	inbuf   []byte   // bytes read but not yet consumed
	pending []string // stashed unsolicited +CMTI notification lines
}

// NewChannel wraps an open modem port. reset may be nil.
func NewChannel(port io.ReadWriter, reset gpio.PinOut) *Channel {
	return &Channel{port: port, reset: reset}
}

// Ready reports whether the init sequence completed and the modem is usable
// for messaging.
func (c *Channel) Ready() bool { return c.ready }

// Execute writes one command line and polls the reply until it classifies as
// Ack ("OK"), Fail ("ERROR") or the timeout elapses. Stale input buffered
// before the command is discarded so a late reply from an earlier exchange
// can never satisfy this one.
func (c *Channel) Execute(cmd string, timeout time.Duration) (Result, error) {
	if c.busy {
		return Result{}, ErrBusy
	}
	c.busy = true
	defer func() { c.busy = false }()

	c.drainInput()
	c.extractNotifications()
	c.inbuf = nil

	if _, err := io.WriteString(c.port, cmd+writeTerminator); err != nil {
		return Result{}, fmt.Errorf("modem: write %q: %w", cmd, err)
	}

	return c.await(timeout)
}

// Await polls the reply to bytes already written with WriteRaw and
// classifies it before the deadline. The message submission sequence uses
// this for its final response, where the command itself was a multi-step
// raw write.
func (c *Channel) Await(timeout time.Duration) (Result, error) {
	if c.busy {
		return Result{}, ErrBusy
	}
	c.busy = true
	defer func() { c.busy = false }()

	return c.await(timeout)
}

func (c *Channel) await(timeout time.Duration) (Result, error) {
	deadline := NewDeadline(timeout)
	chunk := make([]byte, 256)
	for {
		n, err := c.port.Read(chunk)
		if n > 0 {
			c.inbuf = append(c.inbuf, chunk[:n]...)
			c.extractNotifications()

			if r, ok := c.classify(); ok {
				return r, nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("modem: read: %w", err)
		}
		if deadline.Expired() {
			text := strings.TrimSpace(string(c.inbuf))
			c.inbuf = nil
			return Result{Kind: Timeout, Text: text}, nil
		}
		if n == 0 {
			time.Sleep(pollInterval)
		}
	}
}

// WriteRaw writes bytes to the port without a terminator and without waiting
// for a reply. Used by the message submission sequence for the body and the
// 0x1A terminator.
func (c *Channel) WriteRaw(p []byte) error {
	if c.busy {
		return ErrBusy
	}
	_, err := c.port.Write(p)
	return err
}

// Notification polls buffered input and returns the oldest pending
// unsolicited notification line, if any.
func (c *Channel) Notification() (string, bool) {
	c.drainInput()
	c.extractNotifications()
	if len(c.pending) == 0 {
		return "", false
	}
	n := c.pending[0]
	c.pending = c.pending[1:]
	return n, true
}

// HardReset asserts the modem reset line, holds it briefly, releases it and
// waits for the modem to settle. Buffered input and pending notifications
// are discarded since the modem forgot about them too.
func (c *Channel) HardReset() error {
	if c.reset == nil {
		return errors.New("modem: no reset line configured")
	}
	log.Println("modem: hard reset")
	if err := c.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("modem: assert reset: %w", err)
	}
	time.Sleep(resetHold)
	if err := c.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("modem: release reset: %w", err)
	}
	time.Sleep(resetSettle)
	c.inbuf = nil
	c.pending = nil
	c.ready = false
	return nil
}

// classify checks the accumulated reply for a terminal token. On a match the
// buffer is consumed into the result text.
func (c *Channel) classify() (Result, bool) {
	s := string(c.inbuf)
	var kind ResultKind
	switch {
	case strings.Contains(s, "ERROR"):
		kind = Fail
	case strings.Contains(s, "OK"):
		kind = Ack
	default:
		return Result{}, false
	}
	c.inbuf = nil
	return Result{Kind: kind, Text: strings.TrimSpace(s)}, true
}

// drainInput reads whatever bytes are waiting on the port into inbuf. Read
// returns with n == 0 once the inter-character timeout passes with nothing
// new, which bounds this to a single quiet period.
func (c *Channel) drainInput() {
	chunk := make([]byte, 256)
	for {
		n, err := c.port.Read(chunk)
		if n > 0 {
			c.inbuf = append(c.inbuf, chunk[:n]...)
		}
		if n == 0 || err != nil {
			return
		}
	}
}

// extractNotifications pulls complete "+CMTI:" lines out of inbuf into the
// pending queue so they are not lost inside a command reply. Other complete
// lines stay in place for classification.
func (c *Channel) extractNotifications() {
	for {
		i := bytes.Index(c.inbuf, []byte("+CMTI:"))
		if i < 0 {
			return
		}
		j := bytes.IndexByte(c.inbuf[i:], '\n')
		if j < 0 {
			return // line still incomplete, wait for more bytes
		}
		line := strings.TrimSpace(string(c.inbuf[i : i+j]))
		c.pending = append(c.pending, line)
		c.inbuf = append(c.inbuf[:i], c.inbuf[i+j+1:]...)
	}
}
