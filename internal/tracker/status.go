package tracker

// StatusMessage is the JSON payload published on the status topic for the
// indicator collaborators (console, web, display).
type StatusMessage struct {
	DeviceID     string  `json:"device_id"`
	Status       string  `json:"status"`
	Mode         string  `json:"mode"`
	FixValid     bool    `json:"fix_valid"`
	Satellites   int     `json:"sats"`
	ModemReady   bool    `json:"modem_ready"`
	MessagesSent uint32  `json:"messages_sent"`
	ErrorCount   uint32  `json:"error_count"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
	TripKm       float64 `json:"trip_km"`
}

// StatusMessage snapshots the context for publishing.
func (t *Tracker) StatusMessage() StatusMessage {
	return StatusMessage{
		DeviceID:     t.cfg.DeviceID,
		Status:       t.Status().String(),
		Mode:         t.mode.String(),
		FixValid:     t.fix.Valid,
		Satellites:   t.fix.Satellites,
		ModemReady:   t.modemReady,
		MessagesSent: t.stats.MessagesSent,
		ErrorCount:   t.stats.ErrorCount,
		MaxSpeedKmh:  t.stats.MaxSpeedKmh,
		TripKm:       t.trip.DistanceKm(),
	}
}
