// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sms

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/vehicle_tracker/internal/modem"
)

// Message is one outbound text message. It exists only for the duration of a
// send attempt.
type Message struct {
	Recipient string
	Body      string
	Urgent    bool
}

// ErrTimeout marks a store operation whose reply never classified before
// its deadline, as opposed to an explicit rejection by the modem.
var ErrTimeout = errors.New("sms: no response before deadline")

// Vars rather than consts so tests can compress the waits.
var (
	// paceDelay is the settle pause between the steps of the submission
	// sequence; the modem needs it to raise its input prompt.
	paceDelay = 500 * time.Millisecond

	// sendTimeout bounds the wait for the final submission response, which
	// includes the network round trip.
	sendTimeout = 15 * time.Second

	readTimeout   = 5 * time.Second
	deleteTimeout = 5 * time.Second
)

// ctrlZ terminates the message body in text mode.
const ctrlZ = 0x1A

// Messenger implements the message send/receive primitive on top of the
// command channel.
type Messenger struct {
	ch *modem.Channel
}

// New wraps a command channel.
func New(ch *modem.Channel) *Messenger {
	return &Messenger{ch: ch}
}

// Send runs the multi-step submission sequence: begin command with the
// quoted recipient, paced delay, raw body, paced delay, terminator byte,
// then final response classified within sendTimeout. The outcome is
// returned; the caller decides whether to count or log it. There is no
// device-level retry.
func (m *Messenger) Send(msg Message) (modem.ResultKind, error) {
	begin := fmt.Sprintf("AT+CMGS=%q\r", msg.Recipient)
	if err := m.ch.WriteRaw([]byte(begin)); err != nil {
		return modem.Fail, fmt.Errorf("sms: begin command: %w", err)
	}
	time.Sleep(paceDelay)

	if err := m.ch.WriteRaw([]byte(msg.Body)); err != nil {
		return modem.Fail, fmt.Errorf("sms: body: %w", err)
	}
	time.Sleep(paceDelay)

	if err := m.ch.WriteRaw([]byte{ctrlZ}); err != nil {
		return modem.Fail, fmt.Errorf("sms: terminator: %w", err)
	}

	r, err := m.ch.Await(sendTimeout)
	if err != nil {
		return modem.Fail, fmt.Errorf("sms: await response: %w", err)
	}
	if r.Kind == modem.Ack {
		log.Printf("sms: message to %s delivered to network", msg.Recipient)
	}
	return r.Kind, nil
}

// ParseNotification extracts the message index from an unsolicited
// notification line such as `+CMTI: "SM",4`.
func ParseNotification(line string) (int, bool) {
	i := strings.Index(line, "+CMTI:")
	if i < 0 {
		return 0, false
	}
	j := strings.LastIndex(line, ",")
	if j < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(line[j+1:]))
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Poll checks the channel for an inbound notification and returns the
// message index, if one arrived.
func (m *Messenger) Poll() (int, bool) {
	line, ok := m.ch.Notification()
	if !ok {
		return 0, false
	}
	idx, ok := ParseNotification(line)
	if !ok {
		log.Printf("sms: unparseable notification %q", line)
		return 0, false
	}
	return idx, true
}

// Read retrieves the full text of the message at the given store index.
// A reply that never classified wraps ErrTimeout so the caller can log it
// apart from a rejection.
func (m *Messenger) Read(index int) (string, error) {
	r, err := m.ch.Execute(fmt.Sprintf("AT+CMGR=%d", index), readTimeout)
	if err != nil {
		return "", err
	}
	switch r.Kind {
	case modem.Ack:
		return extractBody(r.Text), nil
	case modem.Timeout:
		return "", fmt.Errorf("read of message %d: %w", index, ErrTimeout)
	default:
		return "", fmt.Errorf("sms: read of message %d rejected", index)
	}
}

// Delete removes the message at the given store index. Always called after
// processing, recognized command or not, so the store never fills.
func (m *Messenger) Delete(index int) error {
	r, err := m.ch.Execute(fmt.Sprintf("AT+CMGD=%d", index), deleteTimeout)
	if err != nil {
		return err
	}
	if r.Kind != modem.Ack {
		return fmt.Errorf("sms: delete of message %d failed: %s", index, r.Kind)
	}
	return nil
}

// extractBody pulls the message text out of a +CMGR reply: everything after
// the header line, up to the trailing OK.
func extractBody(reply string) string {
	lines := strings.Split(reply, "\n")
	var body []string
	inBody := false
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "+CMGR:"):
			inBody = true
		case inBody:
			if strings.TrimSpace(line) == "OK" {
				return strings.TrimSpace(strings.Join(body, "\n"))
			}
			body = append(body, line)
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
