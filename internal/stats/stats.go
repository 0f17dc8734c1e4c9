// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stats

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
)

// Statistics are the device's persisted counters. Loaded at startup and
// written back after every health check.
type Statistics struct {
	MessagesSent uint32  `json:"messages_sent"`
	ErrorCount   uint32  `json:"error_count"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
}

// Sanity ceilings. A freshly flashed or corrupted NV region can hold
// anything; values above these are not believable for this device class.
const (
	MaxSaneCounter  = 1_000_000
	MaxSaneSpeedKmh = 400.0
)

// Sanitize resets any field outside its sanity ceiling to zero and reports
// whether it had to. The loader must not trust persisted data blindly.
func (s *Statistics) Sanitize() bool {
	dirty := false
	if s.MessagesSent > MaxSaneCounter {
		s.MessagesSent = 0
		dirty = true
	}
	if s.ErrorCount > MaxSaneCounter {
		s.ErrorCount = 0
		dirty = true
	}
	if math.IsNaN(s.MaxSpeedKmh) || s.MaxSpeedKmh < 0 || s.MaxSpeedKmh > MaxSaneSpeedKmh {
		s.MaxSpeedKmh = 0
		dirty = true
	}
	return dirty
}

// Store loads and saves Statistics. The real store is a small file standing
// in for the non-volatile region; tests use an in-memory one.
type Store interface {
	Load() (Statistics, error)
	Save(Statistics) error
}

// Fixed-offset binary layout of the persisted region, little-endian:
// sent count at 0 (uint32), error count at 4 (uint32), max speed at 8
// (float64 bits).
const (
	offSent    = 0
	offErr     = 4
	offSpeed   = 8
	regionSize = 16
)

// FileStore persists Statistics to a fixed-layout binary file.
type FileStore struct {
	Path string
}

// Load reads and sanitizes the persisted statistics. A missing or
// short region yields zeroed statistics rather than an error.
func (f *FileStore) Load() (Statistics, error) {
	raw, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		log.Printf("stats: no region at %s, starting from zero", f.Path)
		return Statistics{}, nil
	}
	if err != nil {
		return Statistics{}, fmt.Errorf("stats: read region: %w", err)
	}
	if len(raw) < regionSize {
		log.Printf("stats: region at %s truncated (%d bytes), starting from zero", f.Path, len(raw))
		return Statistics{}, nil
	}

	s := Statistics{
		MessagesSent: binary.LittleEndian.Uint32(raw[offSent:]),
		ErrorCount:   binary.LittleEndian.Uint32(raw[offErr:]),
		MaxSpeedKmh:  math.Float64frombits(binary.LittleEndian.Uint64(raw[offSpeed:])),
	}
	if s.Sanitize() {
		log.Printf("stats: persisted values out of bounds, reset to zero")
	}
	return s, nil
}

// Save writes the statistics back to the region.
func (f *FileStore) Save(s Statistics) error {
	raw := make([]byte, regionSize)
	binary.LittleEndian.PutUint32(raw[offSent:], s.MessagesSent)
	binary.LittleEndian.PutUint32(raw[offErr:], s.ErrorCount)
	binary.LittleEndian.PutUint64(raw[offSpeed:], math.Float64bits(s.MaxSpeedKmh))

	if err := os.WriteFile(f.Path, raw, 0o644); err != nil {
		return fmt.Errorf("stats: write region: %w", err)
	}
	return nil
}
