package modem

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Init sequence errors. SIM readiness and network registration failures
// leave the device in GPS-only operation; they are reported distinctly so
// the caller can log which step gave up.
var (
	ErrNoResponse    = errors.New("modem: no response to liveness probe")
	ErrInitFailed    = errors.New("modem: init command rejected")
	ErrSIMNotReady   = errors.New("modem: SIM card not ready")
	ErrNotRegistered = errors.New("modem: not registered on network")
)

const (
	initCmdTimeout = 2 * time.Second
	simCmdTimeout  = 5 * time.Second
	regAttempts    = 10
	regRetryDelay  = 2 * time.Second
)

// Init runs the ordered modem bring-up sequence. On success the channel is
// marked ready for messaging. Any failure returns with the modem not ready;
// fix acquisition is unaffected either way.
func (c *Channel) Init() error {
	c.ready = false

	r, err := c.Execute("AT", initCmdTimeout)
	if err != nil {
		return err
	}
	if r.Kind != Ack {
		return ErrNoResponse
	}

	for _, cmd := range []string{"ATE0", "AT+CNMI=2,1"} {
		r, err := c.Execute(cmd, initCmdTimeout)
		if err != nil {
			return err
		}
		if r.Kind != Ack {
			return fmt.Errorf("%w: %s -> %s", ErrInitFailed, cmd, r.Kind)
		}
	}

	r, err = c.Execute("AT+CPIN?", simCmdTimeout)
	if err != nil {
		return err
	}
	if r.Kind != Ack || !strings.Contains(r.Text, "READY") {
		return ErrSIMNotReady
	}

	registered := false
	for attempt := 1; attempt <= regAttempts; attempt++ {
		r, err := c.Execute("AT+CREG?", initCmdTimeout)
		if err != nil {
			return err
		}
		if r.Kind == Ack && registrationOK(r.Text) {
			registered = true
			break
		}
		log.Printf("modem: not registered yet (attempt %d/%d)", attempt, regAttempts)
		time.Sleep(regRetryDelay)
	}
	if !registered {
		return ErrNotRegistered
	}

	for _, cmd := range []string{"AT+CMGF=1", `AT+CSCS="GSM"`} {
		r, err := c.Execute(cmd, initCmdTimeout)
		if err != nil {
			return err
		}
		if r.Kind != Ack {
			return fmt.Errorf("%w: %s -> %s", ErrInitFailed, cmd, r.Kind)
		}
	}

	c.ready = true
	log.Println("modem: init complete, registered and in text mode")
	return nil
}

// Probe issues a bare liveness command with the given deadline. Used by the
// health monitor.
func (c *Channel) Probe(timeout time.Duration) bool {
	r, err := c.Execute("AT", timeout)
	return err == nil && r.Kind == Ack
}

// registrationOK parses a "+CREG: <n>,<stat>" reply. Status 1 (registered,
// home network) and 5 (registered, roaming) count as registered.
func registrationOK(text string) bool {
	i := strings.Index(text, "+CREG:")
	if i < 0 {
		return false
	}
	fields := strings.Split(text[i+len("+CREG:"):], ",")
	if len(fields) < 2 {
		return false
	}
	stat := strings.TrimSpace(fields[1])
	// trailing content after the status digit (e.g. the OK line) gets cut
	if j := strings.IndexAny(stat, "\r\n "); j >= 0 {
		stat = stat[:j]
	}
	return stat == "1" || stat == "5"
}
