// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/vehicle_tracker/internal/command"
	"github.com/relabs-tech/vehicle_tracker/internal/gps"
	"github.com/relabs-tech/vehicle_tracker/internal/health"
	"github.com/relabs-tech/vehicle_tracker/internal/modem"
	"github.com/relabs-tech/vehicle_tracker/internal/sms"
	"github.com/relabs-tech/vehicle_tracker/internal/stats"
)

// SpeedAlertWindow is the rolling debounce window: at most one speed alert
// per window, however many excess-speed samples arrive inside it.
const SpeedAlertWindow = 60 * time.Second

// FailureRestartLimit is the number of consecutive failed message
// submissions after which a modem hard reset is requested. An Ack resets
// the tally.
const FailureRestartLimit = 3

// Config is the static device identity the state machine reports with.
type Config struct {
	DeviceID      string
	RouteName     string
	Contact       string // primary contact phone number
	SpeedLimitKmh float64
}

// Sender delivers one outbound message. Satisfied by *sms.Messenger; tests
// substitute a recorder.
type Sender interface {
	Send(msg sms.Message) (modem.ResultKind, error)
}

// Tracker is the device context: it owns the operational mode, the current
// fix snapshot, statistics, the error log and all alert timing. It is
// driven by the single control loop and holds no locks by construction;
// every method takes the loop's current time explicitly.
type Tracker struct {
	cfg    Config
	sender Sender
	store  stats.Store

	mode       Mode
	fix        gps.Fix
	modemReady bool
	healthOK   bool
	lastHealth health.Status

	stats  stats.Statistics
	errlog health.Log
	trip   *Trip

	startupSent    bool
	sendFailures   int
	lastSend       time.Time
	haveSent       bool
	lastSpeedAlert time.Time
	haveSpeedAlert bool
	restartWanted  bool
}

// New builds the device context around loaded statistics.
func New(cfg Config, sender Sender, store stats.Store, loaded stats.Statistics, jumpThresholdM float64) *Tracker {
	return &Tracker{
		cfg:      cfg,
		sender:   sender,
		store:    store,
		stats:    loaded,
		trip:     NewTrip(jumpThresholdM),
		healthOK: true,
	}
}

// Mode returns the active operational mode.
func (t *Tracker) Mode() Mode { return t.mode }

// Fix returns the current fix snapshot (Valid false while NoFix).
func (t *Tracker) Fix() gps.Fix { return t.fix }

// Statistics returns a copy of the owned counters.
func (t *Tracker) Statistics() stats.Statistics { return t.stats }

// Errors returns the retained error records, oldest first.
func (t *Tracker) Errors() []health.Record { return t.errlog.Snapshot() }

// Health returns the most recent health status.
func (t *Tracker) Health() health.Status { return t.lastHealth }

// RestartWanted reports whether a REBOOT command asked for a modem restart;
// reading it clears the request.
func (t *Tracker) RestartWanted() bool {
	w := t.restartWanted
	t.restartWanted = false
	return w
}

// Status derives the symbolic status code shown by the indicator
// collaborators.
func (t *Tracker) Status() StatusCode {
	switch {
	case t.mode == Emergency:
		return StatusEmergency
	case !t.modemReady || !t.healthOK:
		return StatusError
	case t.fix.Valid:
		return StatusFixedOK
	default:
		return StatusWaitingForFix
	}
}

// LogError appends to the bounded error log and bumps the persisted error
// counter. No failure is swallowed from the log's perspective.
func (t *Tracker) LogError(kind health.Kind, msg string, now time.Time) {
	log.Printf("tracker: %s: %s", kind, msg)
	t.errlog.Append(kind, msg, now)
	t.stats.ErrorCount++
}

// SetModemReady records the modem subsystem state. Becoming ready for the
// first time sends the one-shot startup report, unconditionally and
// independent of fix state.
func (t *Tracker) SetModemReady(ready bool, now time.Time) {
	t.modemReady = ready
	if ready && !t.startupSent {
		t.startupSent = true
		body := fmt.Sprintf("%s %s\nStarted, waiting for GPS fix", t.cfg.DeviceID, t.cfg.RouteName)
		t.send(body, false, now)
	}
}

// ModemReady reports whether the messaging subsystem is usable.
func (t *Tracker) ModemReady() bool { return t.modemReady }

// HandleSampleRejected logs a validator rejection. The current fix is
// unchanged by construction.
func (t *Tracker) HandleSampleRejected(reason error, now time.Time) {
	t.LogError(health.GPSInvalidSample, reason.Error(), now)
}

// HandleFix feeds one accepted fix: updates the context snapshot, trip
// distance, the maximum observed speed, and the speed alert.
func (t *Tracker) HandleFix(fix gps.Fix, now time.Time) {
	t.fix = fix
	t.trip.Advance(fix)
	if fix.SpeedKmh > t.stats.MaxSpeedKmh {
		t.stats.MaxSpeedKmh = fix.SpeedKmh
	}
	t.checkSpeed(fix, now)
}

// HandleFixEvent reacts to validator transitions.
func (t *Tracker) HandleFixEvent(ev gps.Event, now time.Time) {
	switch ev {
	case gps.EventFixAcquired:
		log.Println("tracker: fix acquired")
		if t.sendPositionReport(now) {
			t.lastSend = now
			t.haveSent = true
		}
	case gps.EventFixLost:
		t.fix.Valid = false
		t.LogError(health.GPSSignalLost, "no accepted sample for 30s", now)
	case gps.EventAcquisitionTimeout:
		t.LogError(health.GPSAcquisitionTimeout, "no fix within startup window", now)
	}
}

// TickSchedule fires the scheduled report when the mode's interval has
// elapsed, a fix is valid and the modem is ready.
func (t *Tracker) TickSchedule(now time.Time) {
	if !t.fix.Valid || !t.modemReady {
		return
	}
	if t.haveSent && now.Sub(t.lastSend) < t.mode.ReportInterval() {
		return
	}
	if t.sendPositionReport(now) {
		t.lastSend = now
		t.haveSent = true
	}
}

// Panic enters Emergency from the external panic signal and sends an
// immediate annotated report, bypassing the interval gate.
func (t *Tracker) Panic(now time.Time) {
	if t.mode == Emergency {
		return
	}
	log.Println("tracker: PANIC signal, entering emergency mode")
	t.mode = Emergency
	if t.fix.Valid {
		if t.sendPositionReport(now) {
			t.lastSend = now
			t.haveSent = true
		}
	} else {
		t.send(t.cfg.DeviceID+" EMERGENCY (no GPS fix)", true, now)
	}
}

// HandleHealth consumes one health evaluation: a transition into unhealthy
// enters Emergency and sends the health alert past the interval gate.
// Statistics are persisted after every evaluation.
func (t *Tracker) HandleHealth(st health.Status, becameUnhealthy bool, now time.Time) {
	t.lastHealth = st
	t.healthOK = st.Overall

	if becameUnhealthy {
		latest := t.latestError()
		t.send(FormatHealthAlert(t.cfg.DeviceID, st, latest), true, now)
		if t.mode != Emergency {
			log.Println("tracker: health failure, entering emergency mode")
			t.mode = Emergency
		}
	}

	if err := t.store.Save(t.stats); err != nil {
		log.Printf("tracker: persist stats: %v", err)
	}
}

// HandleInbound parses and dispatches one inbound message body.
// Unrecognized content is silently ignored. Mode-setting verbs are
// idempotent.
func (t *Tracker) HandleInbound(body string, now time.Time) {
	cmd, ok := command.Parse(body)
	if !ok {
		log.Printf("tracker: ignoring unrecognized message %q", body)
		return
	}
	log.Printf("tracker: command %s", cmd.Verb)

	switch cmd.Action {
	case command.ActionTrackOn:
		if t.mode == Emergency {
			t.send("In emergency mode, send EMERGENCY OFF first", false, now)
			return
		}
		t.mode = Tracking
		t.send("Tracking enabled", false, now)

	case command.ActionTrackOff:
		if t.mode == Emergency {
			t.send("In emergency mode, send EMERGENCY OFF first", false, now)
			return
		}
		t.mode = Normal
		t.send("Tracking disabled", false, now)

	case command.ActionEmergencyOff:
		t.mode = Normal
		t.send("Emergency cleared", false, now)

	case command.ActionStatus:
		t.send(FormatStatus(t.cfg.DeviceID, t.mode, t.Status(), t.fix,
			t.lastHealth, t.stats, t.trip.DistanceKm(), t.latestError()), false, now)

	case command.ActionLocation:
		if t.fix.Valid {
			if t.sendPositionReport(now) {
				t.lastSend = now
				t.haveSent = true
			}
		} else {
			t.send("No GPS fix", false, now)
		}

	case command.ActionTest:
		t.send(t.testReport(), false, now)

	case command.ActionHelp:
		t.send(FormatHelp(t.cfg.DeviceID), false, now)

	case command.ActionReboot:
		t.send("Restarting modem", false, now)
		t.restartWanted = true
	}
}

// checkSpeed raises at most one speed alert per rolling debounce window.
func (t *Tracker) checkSpeed(fix gps.Fix, now time.Time) {
	if t.cfg.SpeedLimitKmh <= 0 || fix.SpeedKmh <= t.cfg.SpeedLimitKmh {
		return
	}
	if t.haveSpeedAlert && now.Sub(t.lastSpeedAlert) < SpeedAlertWindow {
		return
	}
	t.haveSpeedAlert = true
	t.lastSpeedAlert = now
	body := fmt.Sprintf("%s SPEED ALERT\n%.1f km/h (limit %.0f)\nhttps://maps.google.com/?q=%.6f,%.6f",
		t.cfg.DeviceID, fix.SpeedKmh, t.cfg.SpeedLimitKmh, fix.Latitude, fix.Longitude)
	t.send(body, true, now)
}

func (t *Tracker) sendPositionReport(now time.Time) bool {
	return t.send(FormatReport(t.cfg.DeviceID, t.cfg.RouteName, t.fix, t.mode), t.mode == Emergency, now)
}

// send delivers one message to the primary contact and classifies the
// outcome: success counts, failure and timeout are logged as messaging
// errors with no device-level retry.
func (t *Tracker) send(body string, urgent bool, now time.Time) bool {
	if !t.modemReady {
		return false
	}

	kind, err := t.sender.Send(sms.Message{Recipient: t.cfg.Contact, Body: body, Urgent: urgent})
	if err != nil {
		t.LogError(health.SMSSendRejected, err.Error(), now)
		t.noteSendFailure()
		return false
	}
	switch kind {
	case modem.Ack:
		t.sendFailures = 0
		t.stats.MessagesSent++
		return true
	case modem.Timeout:
		t.LogError(health.SMSSendTimeout, "no final response within 15s", now)
		t.noteSendFailure()
		return false
	default:
		t.LogError(health.SMSSendRejected, "submission rejected", now)
		t.noteSendFailure()
		return false
	}
}

// noteSendFailure tallies consecutive failed submissions. Hitting the limit
// requests a modem hard reset as recovery from a wedged modem that no
// longer answers or accepts messages.
func (t *Tracker) noteSendFailure() {
	t.sendFailures++
	if t.sendFailures >= FailureRestartLimit {
		log.Printf("tracker: %d consecutive send failures, requesting modem restart", t.sendFailures)
		t.sendFailures = 0
		t.restartWanted = true
	}
}

func (t *Tracker) testReport() string {
	fixWord := "none"
	if t.fix.Valid {
		fixWord = fmt.Sprintf("ok (%d sats)", t.fix.Satellites)
	}
	return fmt.Sprintf("%s self test\nFix: %s\nModem: ready\nErrors logged: %d",
		t.cfg.DeviceID, fixWord, t.stats.ErrorCount)
}

func (t *Tracker) latestError() *health.Record {
	if r, ok := t.errlog.Latest(); ok {
		return &r
	}
	return nil
}
