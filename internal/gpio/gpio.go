// Package gpio provides the two-wire HX711 line pair with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation simulates the converter's shift register for tests.
package gpio

// Bus drives the converter's serial clock (PD_SCK) and samples its data
// output (DOUT).
type Bus interface {
	// SetClock drives PD_SCK high or low. The level is applied before
	// SetClock returns.
	SetClock(high bool) error

	// Data returns the instantaneous DOUT level (true = high).
	Data() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default line assignment (BCM numbering).
const (
	DefaultChip     = "gpiochip0"
	DefaultPinData  = 5 // DOUT
	DefaultPinClock = 6 // PD_SCK
)
