package selftest

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Run checks the I/O wiring at boot by driving the loopback output pin and
// reading the level back on the sense pin. A failure here may be
// electrical, so the caller treats it as fatal and halts rather than
// retrying.
func Run(outPin, sensePin string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("selftest: periph host init: %w", err)
	}

	out := gpioreg.ByName(outPin)
	if out == nil {
		return fmt.Errorf("selftest: output pin %q not found", outPin)
	}
	sense := gpioreg.ByName(sensePin)
	if sense == nil {
		return fmt.Errorf("selftest: sense pin %q not found", sensePin)
	}
	if err := sense.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("selftest: configure sense pin: %w", err)
	}

	for _, level := range []gpio.Level{gpio.Low, gpio.High, gpio.Low} {
		if err := out.Out(level); err != nil {
			return fmt.Errorf("selftest: drive %s: %w", level, err)
		}
		time.Sleep(10 * time.Millisecond)
		if got := sense.Read(); got != level {
			return fmt.Errorf("selftest: drove %s, read back %s", level, got)
		}
	}
	return nil
}
