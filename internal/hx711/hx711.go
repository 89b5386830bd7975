// Package hx711 reads a load cell through an HX711 24-bit ADC by
// bit-banging its two-wire serial interface.
//
// One read is a fixed sequence: wait for DOUT to drop (conversion ready),
// clock out 24 bits MSB first, send one more pulse to keep the device on
// channel A at gain 128, then decode the 24-bit two's complement word.
// Time is injected through Clock so the whole exchange runs in simulated
// time under test.
package hx711

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/scale-sensor/internal/gpio"
)

// ErrTimeout is returned when DOUT does not signal ready within
// Timing.ReadyTimeout.
var ErrTimeout = errors.New("hx711: timed out waiting for data ready")

const (
	dataBits   = 24
	gainPulses = 1 // channel A, gain 128
	signBit    = 1 << (dataBits - 1)
	wordMask   = 1<<dataBits - 1

	// WeightMask is applied to every Weight result.
	WeightMask = 0xFFFF
)

// Reading is the result of one exchange with the tare offset applied.
type Reading struct {
	Raw    int64 // decoded signed conversion
	Offset int64 // tare offset in effect
	Net    int64 // Raw - Offset
	Weight int64 // Net & WeightMask
}

// Device is an HX711 on a Bus. It owns the bus: all exchanges and tare runs
// are serialised, so it is safe for concurrent use.
type Device struct {
	bus    gpio.Bus
	clock  Clock
	timing Timing

	mu     sync.Mutex
	offset int64
}

// New creates a Device. Call Init before the first read.
func New(bus gpio.Bus, clock Clock, timing Timing) *Device {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Device{
		bus:    bus,
		clock:  clock,
		timing: timing,
	}
}

// Timing returns the device timing.
func (d *Device) Timing() Timing {
	return d.timing
}

// Init drives PD_SCK low and waits out the power-up settle interval.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.bus.SetClock(false); err != nil {
		return fmt.Errorf("init clock low: %w", err)
	}
	d.clock.Sleep(d.timing.Settle)
	return nil
}

// ReadRaw performs one exchange and returns the decoded signed value.
func (d *Device) ReadRaw(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRaw(ctx)
}

// Tare averages Timing.TareSamples raw reads and stores the truncated mean
// as the new offset. If any read fails the previous offset is kept.
func (d *Device) Tare(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.timing.TareSamples
	if n < 1 {
		n = 1
	}

	var sum int64
	for i := 0; i < n; i++ {
		v, err := d.readRaw(ctx)
		if err != nil {
			return d.offset, fmt.Errorf("tare sample %d: %w", i, err)
		}
		sum += v
		d.clock.Sleep(d.timing.TareRest)
	}

	d.offset = sum / int64(n)
	return d.offset, nil
}

// Offset returns the tare offset.
func (d *Device) Offset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}

// Read performs one exchange and applies the tare offset.
func (d *Device) Read(ctx context.Context) (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.readRaw(ctx)
	if err != nil {
		return Reading{}, err
	}
	net := raw - d.offset
	return Reading{
		Raw:    raw,
		Offset: d.offset,
		Net:    net,
		Weight: Mask(net),
	}, nil
}

// Weight returns the tared reading masked to its low 16 bits.
//
// The mask drops the sign and anything above 16 bits, so a net reading of
// -1 reports 0xFFFF. It is kept for compatibility with existing consumers;
// use Net or Read for the unmasked value.
func (d *Device) Weight(ctx context.Context) (int64, error) {
	r, err := d.Read(ctx)
	if err != nil {
		return 0, err
	}
	return r.Weight, nil
}

// Net returns the tared reading without masking.
func (d *Device) Net(ctx context.Context) (int64, error) {
	r, err := d.Read(ctx)
	if err != nil {
		return 0, err
	}
	return r.Net, nil
}

// Mask narrows a net reading to the low 16 bits reported by Weight.
func Mask(net int64) int64 {
	return net & WeightMask
}

// Decode interprets the low 24 bits of word as two's complement.
func Decode(word uint32) int64 {
	word &= wordMask
	if word&signBit != 0 {
		return -int64((^word & wordMask) + 1)
	}
	return int64(word)
}

func (d *Device) readRaw(ctx context.Context) (int64, error) {
	word, err := d.readWord(ctx)
	if err != nil {
		return 0, err
	}
	return Decode(word), nil
}

// readWord runs WaitReady -> Shift(0..23) -> gain pulse and returns the
// undecoded 24-bit word.
func (d *Device) readWord(ctx context.Context) (uint32, error) {
	if err := d.waitReady(ctx); err != nil {
		return 0, err
	}

	var word uint32
	for i := 0; i < dataBits; i++ {
		bit, err := d.pulse(true)
		if err != nil {
			return 0, d.abort(fmt.Errorf("shift bit %d: %w", i, err))
		}
		word <<= 1
		if bit {
			word |= 1
		}
	}

	for i := 0; i < gainPulses; i++ {
		if _, err := d.pulse(false); err != nil {
			return 0, d.abort(fmt.Errorf("gain pulse: %w", err))
		}
	}

	return word, nil
}

// waitReady polls DOUT until it reads low. Cancellation and the timeout are
// only checked here, never once shifting has started.
func (d *Device) waitReady(ctx context.Context) error {
	start := d.clock.Now()
	for {
		high, err := d.bus.Data()
		if err != nil {
			return fmt.Errorf("wait ready: %w", err)
		}
		if !high {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.timing.ReadyTimeout > 0 && d.clock.Now().Sub(start) >= d.timing.ReadyTimeout {
			return ErrTimeout
		}
		d.clock.Sleep(d.timing.PollInterval)
	}
}

// pulse drives one PD_SCK high/low cycle, sampling DOUT while high if
// sample is set.
func (d *Device) pulse(sample bool) (bool, error) {
	if err := d.bus.SetClock(true); err != nil {
		return false, err
	}
	d.clock.Sleep(d.timing.ClockHold)

	var bit bool
	if sample {
		v, err := d.bus.Data()
		if err != nil {
			return false, err
		}
		bit = v
	}

	if err := d.bus.SetClock(false); err != nil {
		return false, err
	}
	d.clock.Sleep(d.timing.ClockHold)
	return bit, nil
}

// abort tries to leave PD_SCK low after a failed exchange so the device
// does not drift into power-down.
func (d *Device) abort(err error) error {
	if cerr := d.bus.SetClock(false); cerr != nil {
		return fmt.Errorf("%w (clock low: %v)", err, cerr)
	}
	return err
}
