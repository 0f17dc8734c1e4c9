package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/vehicle_tracker/internal/config"
	"github.com/relabs-tech/vehicle_tracker/internal/gps"
	"github.com/relabs-tech/vehicle_tracker/internal/health"
	"github.com/relabs-tech/vehicle_tracker/internal/tracker"
)

// RunConsoleMQTT prints the tracker's status, fix and health messages as
// formatted terminal lines.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s tracker.StatusMessage
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[STAT] %-15s mode=%-9s fix=%-5v sats=%2d sent=%d errs=%d trip=%.1fkm\n",
			s.Status, s.Mode, s.FixValid, s.Satellites, s.MessagesSent, s.ErrorCount, s.TripKm,
		)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	fixToken := client.Subscribe(cfg.TopicFix, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: fix unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[FIX ] %9.6f,%10.6f  %5.1f km/h  alt=%4.0fm  sats=%2d hdop=%.1f\n",
			f.Latitude, f.Longitude, f.SpeedKmh, f.AltitudeM, f.Satellites, f.HDOP,
		)
	})
	fixToken.Wait()
	if fixToken.Error() != nil {
		return fixToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFix)

	healthToken := client.Subscribe(cfg.TopicHealth, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h health.Status
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("console: health unmarshal error: %v", err)
			return
		}
		fmt.Printf("[HLTH] gps=%v modem=%v overall=%v\n", h.GPSHealthy, h.ModemHealthy, h.Overall)
	})
	healthToken.Wait()
	if healthToken.Error() != nil {
		return healthToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicHealth)

	// Block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	client.Disconnect(250)
	return nil
}
