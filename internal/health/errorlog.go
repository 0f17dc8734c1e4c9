package health

import (
	"fmt"
	"time"
)

// Kind classifies a logged failure.
type Kind int

const (
	GPSInvalidSample Kind = iota
	GPSSignalLost
	GPSAcquisitionTimeout
	ModemNoResponse
	ModemInitFailed
	ModemCommandTimeout
	ModemCommandFailed
	SMSSendTimeout
	SMSSendRejected
	SelfTestFailed
)

var kindNames = map[Kind]string{
	GPSInvalidSample:      "gps invalid sample",
	GPSSignalLost:         "gps signal lost",
	GPSAcquisitionTimeout: "gps acquisition timeout",
	ModemNoResponse:       "modem no response",
	ModemInitFailed:       "modem init failed",
	ModemCommandTimeout:   "modem command timeout",
	ModemCommandFailed:    "modem command failed",
	SMSSendTimeout:        "sms send timeout",
	SMSSendRejected:       "sms send rejected",
	SelfTestFailed:        "self-test failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Record is one logged failure. Used only for reporting, never for control
// decisions.
type Record struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// LogCapacity is the fixed number of records retained.
const LogCapacity = 10

// Log is a fixed-capacity diagnostic ring. The oldest record is silently
// overwritten once full. Only append and snapshot are exposed.
type Log struct {
	records [LogCapacity]Record
	next    int
	size    int
	appends uint32
}

// Append stores one record, evicting the oldest if the ring is full.
func (l *Log) Append(k Kind, msg string, now time.Time) {
	l.records[l.next] = Record{Kind: k, Message: msg, Time: now}
	l.next = (l.next + 1) % LogCapacity
	if l.size < LogCapacity {
		l.size++
	}
	l.appends++
}

// Snapshot returns the retained records, oldest first.
func (l *Log) Snapshot() []Record {
	out := make([]Record, 0, l.size)
	start := l.next - l.size
	if start < 0 {
		start += LogCapacity
	}
	for i := 0; i < l.size; i++ {
		out = append(out, l.records[(start+i)%LogCapacity])
	}
	return out
}

// Latest returns the most recent record, if any.
func (l *Log) Latest() (Record, bool) {
	if l.size == 0 {
		return Record{}, false
	}
	idx := l.next - 1
	if idx < 0 {
		idx += LogCapacity
	}
	return l.records[idx], true
}

// Appends returns the total number of records ever appended, including
// evicted ones.
func (l *Log) Appends() uint32 { return l.appends }
