//go:build !linux

package gpio

import "errors"

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// NewRealBus returns an error on non-Linux platforms.
func NewRealBus(chipName string, pinData, pinClock int) (*RealBus, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetClock is not implemented on non-Linux platforms.
func (b *RealBus) SetClock(high bool) error {
	return errors.New("gpio: not supported")
}

// Data is not implemented on non-Linux platforms.
func (b *RealBus) Data() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
