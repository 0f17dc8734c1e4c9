// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicStatus string
	TopicFix    string
	TopicHealth string

	// GPS receiver
	GPSSerialPort string
	GPSBaudRate   int

	// GSM modem
	ModemSerialPort string
	ModemBaudRate   int
	ModemResetPin   string

	// GPIO
	PanicButtonPin   string
	SelfTestOutPin   string
	SelfTestSensePin string

	// Identity and reporting
	DeviceID       string
	RouteName      string
	PrimaryContact string
	SpeedLimitKmh  float64
	// Position steps at least this large are discarded by the trip
	// odometer as receiver glitches.
	JumpFilterMeters float64

	// Persistence
	StatsFile string

	// Timing
	LoopTickMS int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{
		// Defaults for the optional knobs
		TopicStatus:           "tracker/status",
		TopicFix:              "tracker/fix",
		TopicHealth:           "tracker/health",
		JumpFilterMeters:      1000,
		LoopTickMS:            250,
		WebServerPort:         8080,
		DisplayUpdateInterval: 500,
	}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_FIX":
		c.TopicFix = value
	case "TOPIC_HEALTH":
		c.TopicHealth = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Modem
	case "MODEM_SERIAL_PORT":
		c.ModemSerialPort = value
	case "MODEM_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MODEM_BAUD_RATE %q: %w", value, err)
		}
		c.ModemBaudRate = rate
	case "MODEM_RESET_PIN":
		c.ModemResetPin = value

	// GPIO
	case "PANIC_BUTTON_PIN":
		c.PanicButtonPin = value
	case "SELFTEST_OUT_PIN":
		c.SelfTestOutPin = value
	case "SELFTEST_SENSE_PIN":
		c.SelfTestSensePin = value

	// Identity and reporting
	case "DEVICE_ID":
		c.DeviceID = value
	case "ROUTE_NAME":
		c.RouteName = value
	case "PRIMARY_CONTACT":
		c.PrimaryContact = value
	case "SPEED_LIMIT_KMH":
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SPEED_LIMIT_KMH %q: %w", value, err)
		}
		if limit < 0 {
			return fmt.Errorf("SPEED_LIMIT_KMH must be >= 0, got %g", limit)
		}
		c.SpeedLimitKmh = limit
	case "JUMP_FILTER_METERS":
		m, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid JUMP_FILTER_METERS %q: %w", value, err)
		}
		if m <= 0 {
			return fmt.Errorf("JUMP_FILTER_METERS must be > 0, got %g", m)
		}
		c.JumpFilterMeters = m

	// Persistence
	case "STATS_FILE":
		c.StatsFile = value

	// Timing
	case "LOOP_TICK_MS":
		tick, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOOP_TICK_MS %q: %w", value, err)
		}
		if tick < 50 || tick > 5000 {
			return fmt.Errorf("LOOP_TICK_MS must be 50-5000, got %d", tick)
		}
		c.LoopTickMS = tick

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate == 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	if c.ModemSerialPort == "" {
		return fmt.Errorf("MODEM_SERIAL_PORT is required")
	}
	if c.ModemBaudRate == 0 {
		return fmt.Errorf("MODEM_BAUD_RATE is required")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("DEVICE_ID is required")
	}
	if c.PrimaryContact == "" {
		return fmt.Errorf("PRIMARY_CONTACT is required")
	}
	if c.StatsFile == "" {
		return fmt.Errorf("STATS_FILE is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
