package gps

import "time"

// Sample is one raw decoded position sample as delivered by the receiver,
// before any validation. Suitable for JSON and MQTT.
type Sample struct {
	Latitude   float64   `json:"lat"`       // decimal degrees
	Longitude  float64   `json:"lon"`       // decimal degrees
	AltitudeM  float64   `json:"alt_m"`     // meters above sea level
	SpeedKmh   float64   `json:"speed_kmh"` // speed over ground
	Satellites int       `json:"sats"`
	HDOP       float64   `json:"hdop"` // horizontal dilution of precision; lower is better
	Time       time.Time `json:"time"`
}

// Fix is a Sample that passed validation and became the device's current
// position. The previous Fix is retained only for trip bookkeeping.
type Fix struct {
	Sample
	Valid bool `json:"valid"`
}

// Source is anything that can provide samples over time.
// The real source is the NMEA serial reader; tests feed samples directly.
type Source interface {
	Samples() <-chan Sample
	Close() error
}
