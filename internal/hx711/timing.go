package hx711

import (
	"errors"
	"fmt"
	"time"
)

// PowerDownHold is how long PD_SCK may stay high before the HX711 enters
// power-down. Every clock hold must be well below it.
const PowerDownHold = 60 * time.Microsecond

// MinSettle is the minimum power-up settle interval before the first read.
const MinSettle = 50 * time.Millisecond

// Timing holds the tunable protocol timing.
type Timing struct {
	PollInterval time.Duration // sleep between DOUT ready checks
	ClockHold    time.Duration // PD_SCK high and low hold per pulse
	Settle       time.Duration // power-up settle before the first read
	ReadyTimeout time.Duration // bound on the ready wait, 0 waits forever
	TareSamples  int           // raw reads averaged by Tare
	TareRest     time.Duration // rest after each tare read
}

// DefaultTiming returns the reference timing.
func DefaultTiming() Timing {
	return Timing{
		PollInterval: time.Microsecond,
		ClockHold:    time.Microsecond,
		Settle:       100 * time.Millisecond,
		ReadyTimeout: time.Second,
		TareSamples:  10,
		TareRest:     10 * time.Millisecond,
	}
}

// Validate reports timing that would desynchronise or power down the device.
func (t Timing) Validate() error {
	if t.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if t.ClockHold < 0 || t.ClockHold >= PowerDownHold {
		return fmt.Errorf("clock hold %v must be in [0, %v)", t.ClockHold, PowerDownHold)
	}
	if t.Settle < MinSettle {
		return fmt.Errorf("settle %v is below the %v power-up minimum", t.Settle, MinSettle)
	}
	if t.ReadyTimeout < 0 {
		return errors.New("ready timeout must not be negative")
	}
	if t.TareSamples < 1 {
		return errors.New("tare samples must be at least 1")
	}
	if t.TareRest < 0 {
		return errors.New("tare rest must not be negative")
	}
	return nil
}
