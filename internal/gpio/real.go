//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealBus drives the HX711 lines through the Linux GPIO character device.
type RealBus struct {
	chip  *gpiocdev.Chip
	data  *gpiocdev.Line
	clock *gpiocdev.Line
}

// NewRealBus requests PD_SCK as an output initialised low and DOUT as an
// input on the named chip.
func NewRealBus(chipName string, pinData, pinClock int) (*RealBus, error) {
	if pinData == pinClock {
		return nil, fmt.Errorf("data and clock share pin %d", pinData)
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	clockLine, err := chip.RequestLine(pinClock, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request clock pin %d: %w", pinClock, err)
	}

	dataLine, err := chip.RequestLine(pinData, gpiocdev.AsInput)
	if err != nil {
		clockLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request data pin %d: %w", pinData, err)
	}

	return &RealBus{
		chip:  chip,
		data:  dataLine,
		clock: clockLine,
	}, nil
}

// SetClock drives PD_SCK.
func (b *RealBus) SetClock(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := b.clock.SetValue(v); err != nil {
		return fmt.Errorf("set clock pin: %w", err)
	}
	return nil
}

// Data returns the DOUT level.
func (b *RealBus) Data() (bool, error) {
	v, err := b.data.Value()
	if err != nil {
		return false, fmt.Errorf("read data pin: %w", err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Both lines are left as inputs with pull-down. A pulled-down PD_SCK keeps
// the converter out of power-down until the lines are requested again.
func (b *RealBus) Close() error {
	var errs []error

	if b.clock != nil {
		if err := b.clock.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure clock pin: %w", err))
		}
		if err := b.clock.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clock pin: %w", err))
		}
	}
	if b.data != nil {
		if err := b.data.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure data pin: %w", err))
		}
		if err := b.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
