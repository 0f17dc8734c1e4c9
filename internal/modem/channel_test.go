package modem

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort scripts the modem side of the serial link: writes are recorded,
// reads drain whatever the test queued, and the optional write hook lets a
// test reply to commands.
type fakePort struct {
	in      bytes.Buffer // bytes the "modem" will send
	out     bytes.Buffer // bytes written to the "modem"
	onWrite func(p []byte)
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.in.Len() == 0 {
		return 0, nil
	}
	return f.in.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	n, err := f.out.Write(p)
	if f.onWrite != nil {
		f.onWrite(p)
	}
	return n, err
}

func TestExecuteAck(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p []byte) {
		port.in.WriteString("\r\nOK\r\n")
	}
	ch := NewChannel(port, nil)

	r, err := ch.Execute("AT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Ack, r.Kind)
	assert.Equal(t, "OK", r.Text)
	assert.Equal(t, "AT\r\n", port.out.String())
}

func TestExecuteFail(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p []byte) {
		port.in.WriteString("\r\n+CME ERROR: 10\r\n")
	}
	ch := NewChannel(port, nil)

	r, err := ch.Execute("AT+CPIN?", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Fail, r.Kind)
	assert.Contains(t, r.Text, "+CME ERROR")
}

func TestExecuteTimeout(t *testing.T) {
	ch := NewChannel(&fakePort{}, nil)

	start := time.Now()
	r, err := ch.Execute("AT", 60*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Timeout, r.Kind)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestExecutePartialReplyTimesOut(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p []byte) {
		// reply that never contains a terminal token
		port.in.WriteString("\r\n+CREG: 0,2\r\n")
	}
	ch := NewChannel(port, nil)

	r, err := ch.Execute("AT+CREG?", 60*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Timeout, r.Kind)
	assert.Contains(t, r.Text, "+CREG: 0,2")
}

func TestExecuteNoOverlap(t *testing.T) {
	port := &fakePort{}
	ch := NewChannel(port, nil)

	// a reentrant Execute while the first command is unresolved must be
	// refused, not pipelined
	var inner error
	port.onWrite = func(p []byte) {
		if _, err := ch.Execute("AT", time.Second); err != nil {
			inner = err
		}
		port.in.WriteString("\r\nOK\r\n")
	}

	r, err := ch.Execute("AT+CSQ", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Ack, r.Kind)
	assert.ErrorIs(t, inner, ErrBusy)
}

func TestExecuteDiscardsStaleInput(t *testing.T) {
	port := &fakePort{}
	// a late "OK" from an earlier exchange is already sitting in the buffer
	port.in.WriteString("\r\nOK\r\n")
	ch := NewChannel(port, nil)

	r, err := ch.Execute("AT", 60*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Timeout, r.Kind, "stale OK must not satisfy a new command")
}

func TestNotificationStashedDuringExecute(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p []byte) {
		port.in.WriteString("\r\n+CMTI: \"SM\",3\r\nOK\r\n")
	}
	ch := NewChannel(port, nil)

	r, err := ch.Execute("AT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Ack, r.Kind)
	assert.NotContains(t, r.Text, "+CMTI")

	line, ok := ch.Notification()
	require.True(t, ok)
	assert.Equal(t, `+CMTI: "SM",3`, line)

	_, ok = ch.Notification()
	assert.False(t, ok)
}

func TestNotificationBetweenCommands(t *testing.T) {
	port := &fakePort{}
	ch := NewChannel(port, nil)

	_, ok := ch.Notification()
	assert.False(t, ok)

	port.in.WriteString("\r\n+CMTI: \"SM\",12\r\n")
	line, ok := ch.Notification()
	require.True(t, ok)
	assert.Equal(t, `+CMTI: "SM",12`, line)
}

// scriptModem answers each command with a canned reply keyed by the exact
// command text.
func scriptModem(port *fakePort, replies map[string]string) {
	port.onWrite = func(p []byte) {
		if reply, ok := replies[strings.TrimSpace(string(p))]; ok {
			port.in.WriteString(reply)
		}
	}
}

func TestInitSuccess(t *testing.T) {
	port := &fakePort{}
	scriptModem(port, map[string]string{
		"AT":            "\r\nOK\r\n",
		"ATE0":          "\r\nOK\r\n",
		"AT+CNMI=2,1":   "\r\nOK\r\n",
		"AT+CPIN?":      "\r\n+CPIN: READY\r\n\r\nOK\r\n",
		"AT+CREG?":      "\r\n+CREG: 0,1\r\n\r\nOK\r\n",
		"AT+CMGF=1":     "\r\nOK\r\n",
		`AT+CSCS="GSM"`: "\r\nOK\r\n",
	})
	ch := NewChannel(port, nil)

	require.NoError(t, ch.Init())
	assert.True(t, ch.Ready())

	sent := port.out.String()
	// ordered bring-up
	for _, cmd := range []string{"AT\r\n", "ATE0", "AT+CNMI=2,1", "AT+CPIN?", "AT+CREG?", "AT+CMGF=1", `AT+CSCS="GSM"`} {
		assert.Contains(t, sent, cmd)
	}
}

func TestInitRoaming(t *testing.T) {
	port := &fakePort{}
	scriptModem(port, map[string]string{
		"AT":            "\r\nOK\r\n",
		"ATE0":          "\r\nOK\r\n",
		"AT+CNMI=2,1":   "\r\nOK\r\n",
		"AT+CPIN?":      "\r\n+CPIN: READY\r\n\r\nOK\r\n",
		"AT+CREG?":      "\r\n+CREG: 0,5\r\n\r\nOK\r\n",
		"AT+CMGF=1":     "\r\nOK\r\n",
		`AT+CSCS="GSM"`: "\r\nOK\r\n",
	})
	ch := NewChannel(port, nil)

	require.NoError(t, ch.Init())
	assert.True(t, ch.Ready())
}

func TestInitSIMNotReady(t *testing.T) {
	port := &fakePort{}
	scriptModem(port, map[string]string{
		"AT":          "\r\nOK\r\n",
		"ATE0":        "\r\nOK\r\n",
		"AT+CNMI=2,1": "\r\nOK\r\n",
		"AT+CPIN?":    "\r\n+CPIN: SIM PIN\r\n\r\nOK\r\n",
	})
	ch := NewChannel(port, nil)

	assert.ErrorIs(t, ch.Init(), ErrSIMNotReady)
	assert.False(t, ch.Ready())
}

func TestProbe(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p []byte) {
		port.in.WriteString("\r\nOK\r\n")
	}
	ch := NewChannel(port, nil)

	// reply well within the deadline counts as alive
	assert.True(t, ch.Probe(2*time.Second))

	port.onWrite = nil
	assert.False(t, ch.Probe(60*time.Millisecond))
}

func TestRegistrationOK(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"+CREG: 0,1", true},
		{"+CREG: 0,5", true},
		{"+CREG: 0,1\r\nOK", true},
		{"+CREG: 0,0", false},
		{"+CREG: 0,2", false},
		{"+CREG: 0,3", false},
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, registrationOK(tt.text), "text %q", tt.text)
	}
}
