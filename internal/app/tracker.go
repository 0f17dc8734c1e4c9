// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/vehicle_tracker/internal/config"
	"github.com/relabs-tech/vehicle_tracker/internal/gps"
	"github.com/relabs-tech/vehicle_tracker/internal/health"
	"github.com/relabs-tech/vehicle_tracker/internal/modem"
	"github.com/relabs-tech/vehicle_tracker/internal/selftest"
	"github.com/relabs-tech/vehicle_tracker/internal/sms"
	"github.com/relabs-tech/vehicle_tracker/internal/stats"
	"github.com/relabs-tech/vehicle_tracker/internal/tracker"
)

// nopSender stands in when the modem never came up; the tracker's
// modem-ready guard means it is never actually invoked.
type nopSender struct{}

func (nopSender) Send(sms.Message) (modem.ResultKind, error) {
	return modem.Fail, fmt.Errorf("modem unavailable")
}

// deadProber reports the modem unhealthy when there is no channel to probe.
type deadProber struct{}

func (deadProber) Probe(time.Duration) bool { return false }

// RunTracker is the device daemon: one cooperative control loop driving fix
// validation, the modem, inbound commands, alerting and health checks. The
// only other goroutine is the NMEA serial reader feeding samples over a
// buffered channel.
func RunTracker() error {
	cfg := config.Get()
	now := time.Now()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("tracker: periph host init: %w", err)
	}

	// Boot self-test. A failure may be electrical: one best-effort alert,
	// then a terminal halt requiring external intervention.
	if cfg.SelfTestOutPin != "" && cfg.SelfTestSensePin != "" {
		if err := selftest.Run(cfg.SelfTestOutPin, cfg.SelfTestSensePin); err != nil {
			haltOnSelfTest(cfg, err)
		}
	}

	var resetPin gpio.PinOut
	if cfg.ModemResetPin != "" {
		if p := gpioreg.ByName(cfg.ModemResetPin); p != nil {
			resetPin = p
		} else {
			log.Printf("tracker: modem reset pin %q not found", cfg.ModemResetPin)
		}
	}

	var panicPin gpio.PinIn
	if cfg.PanicButtonPin != "" {
		p := gpioreg.ByName(cfg.PanicButtonPin)
		if p == nil {
			log.Printf("tracker: panic button pin %q not found", cfg.PanicButtonPin)
		} else if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			log.Printf("tracker: panic button setup: %v", err)
		} else {
			panicPin = p
		}
	}

	store := &stats.FileStore{Path: cfg.StatsFile}
	loaded, err := store.Load()
	if err != nil {
		return err
	}
	log.Printf("tracker: loaded stats: sent=%d errors=%d max=%.1f km/h",
		loaded.MessagesSent, loaded.ErrorCount, loaded.MaxSpeedKmh)

	// Modem bring-up. Any failure here degrades to GPS-only operation;
	// the loop continues regardless.
	var ch *modem.Channel
	var sender tracker.Sender = nopSender{}
	var messenger *sms.Messenger
	if port, err := modem.OpenPort(cfg.ModemSerialPort, cfg.ModemBaudRate); err != nil {
		log.Printf("tracker: modem port: %v (GPS-only operation)", err)
	} else {
		ch = modem.NewChannel(port, resetPin)
		if resetPin != nil {
			if err := ch.HardReset(); err != nil {
				log.Printf("tracker: modem reset: %v", err)
			}
		}
		messenger = sms.New(ch)
		sender = messenger
	}

	trk := tracker.New(tracker.Config{
		DeviceID:      cfg.DeviceID,
		RouteName:     cfg.RouteName,
		Contact:       cfg.PrimaryContact,
		SpeedLimitKmh: cfg.SpeedLimitKmh,
	}, sender, store, loaded, cfg.JumpFilterMeters)

	if ch != nil {
		if err := ch.Init(); err != nil {
			trk.LogError(health.ModemInitFailed, err.Error(), time.Now())
			log.Println("tracker: continuing in GPS-only operation")
		}
		trk.SetModemReady(ch.Ready(), time.Now())
	}

	var src gps.Source
	if cfg.GPSSerialPort == "mock" {
		log.Println("tracker: using mock GPS source")
		src = gps.NewMockSource()
	} else {
		src, err = gps.OpenNMEA(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return fmt.Errorf("tracker: gps port: %w", err)
		}
	}
	defer src.Close()

	validator := gps.NewValidator(now)

	var prober health.Prober = deadProber{}
	if ch != nil {
		prober = ch
	}
	monitor := health.NewMonitor(prober, now)

	client := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTracker)

	tick := time.Duration(cfg.LoopTickMS) * time.Millisecond
	samples := src.Samples()
	log.Println("tracker: control loop started")

	for {
		now = time.Now()

		// 1) Drain pending samples through the validator.
	drain:
		for {
			select {
			case s, ok := <-samples:
				if !ok {
					return fmt.Errorf("tracker: gps reader stopped")
				}
				ev, rejectErr := validator.Offer(s, now)
				if rejectErr != nil {
					trk.HandleSampleRejected(rejectErr, now)
					continue
				}
				trk.HandleFix(validator.Current(), now)
				if ev != gps.EventNone {
					trk.HandleFixEvent(ev, now)
				}
				publish(client, cfg.TopicFix, validator.Current())
			default:
				break drain
			}
		}

		// 2) Time-based fix transitions (fix lost, acquisition timeout).
		if ev := validator.Tick(now); ev != gps.EventNone {
			trk.HandleFixEvent(ev, now)
		}

		// 3) Panic button, active low.
		if panicPin != nil && panicPin.Read() == gpio.Low {
			trk.Panic(now)
		}

		// 4) Inbound message: retrieve, dispatch, always delete.
		if messenger != nil && trk.ModemReady() {
			if idx, ok := messenger.Poll(); ok {
				body, err := messenger.Read(idx)
				if err != nil {
					kind := health.ModemCommandFailed
					if errors.Is(err, sms.ErrTimeout) {
						kind = health.ModemCommandTimeout
					}
					trk.LogError(kind, err.Error(), now)
				} else {
					trk.HandleInbound(body, now)
				}
				if err := messenger.Delete(idx); err != nil {
					log.Printf("tracker: %v", err)
				}
			}
		}

		// 5) Scheduled report.
		trk.TickSchedule(now)

		// 6) REBOOT command: modem hard reset and re-init.
		if trk.RestartWanted() && ch != nil {
			if err := ch.HardReset(); err != nil {
				log.Printf("tracker: %v", err)
			}
			if err := ch.Init(); err != nil {
				trk.LogError(health.ModemInitFailed, err.Error(), time.Now())
			}
			trk.SetModemReady(ch.Ready(), time.Now())
		}

		// 7) Periodic health evaluation; stats persist inside.
		if monitor.Due(now) {
			st, becameUnhealthy := monitor.Evaluate(validator.Fixed(), trk.Fix().Satellites, now)
			trk.HandleHealth(st, becameUnhealthy, now)
			publish(client, cfg.TopicHealth, st)
		}

		publish(client, cfg.TopicStatus, trk.StatusMessage())

		time.Sleep(tick)
	}
}

// connectMQTT connects the telemetry fan-out. The broker is a convenience,
// not a dependency: failure to connect leaves the device fully functional.
func connectMQTT(broker, clientID string) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("tracker: MQTT connect: %v (continuing without fan-out)", token.Error())
		return nil
	}
	log.Printf("tracker: connected to MQTT broker at %s", broker)
	return client
}

func publish(client mqtt.Client, topic string, v any) {
	if client == nil || topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("tracker: marshal for %s: %v", topic, err)
		return
	}
	client.Publish(topic, 0, true, payload)
}

// haltOnSelfTest sends one best-effort alert about the failed boot
// self-test and parks the process forever. Not auto-recovered: the failure
// may be electrical and needs eyes on the hardware.
func haltOnSelfTest(cfg *config.Config, cause error) {
	log.Printf("tracker: FATAL: %v", cause)

	if port, err := modem.OpenPort(cfg.ModemSerialPort, cfg.ModemBaudRate); err == nil {
		ch := modem.NewChannel(port, nil)
		if err := ch.Init(); err == nil {
			body := fmt.Sprintf("%s SELF-TEST FAILED\n%v\nDevice halted", cfg.DeviceID, cause)
			if _, err := sms.New(ch).Send(sms.Message{Recipient: cfg.PrimaryContact, Body: body, Urgent: true}); err != nil {
				log.Printf("tracker: halt alert: %v", err)
			}
		}
		port.Close()
	}

	log.Println("tracker: halted, external intervention required")
	select {}
}
