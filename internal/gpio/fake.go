package gpio

// FakeBus is a test double that behaves like an HX711 on the other end of
// the lines. Each conversion is a scripted 24-bit word shifted out MSB first
// on successive rising clock edges. The exchange ends on the falling edge of
// the pulse after the 24th bit, after which DOUT stays high for BusyPolls
// reads before the next conversion is ready.
type FakeBus struct {
	// Words contains scripted conversion results (low 24 bits used).
	// Each exchange consumes the next word; the last word repeats.
	Words []uint32

	// BusyPolls is the number of Data() calls that return high between
	// exchanges before DOUT drops to signal ready.
	BusyPolls int

	// NeverReady, if set, holds DOUT high forever.
	NeverReady bool

	// Pulses counts completed clock pulses (high followed by low).
	Pulses int

	// DataReads counts calls to Data().
	DataReads int

	// Exchanges counts completed conversions (data bits plus gain pulse).
	Exchanges int

	// ClockError, if set, will be returned by SetClock.
	ClockError error

	// DataError, if set, will be returned by Data.
	DataError error

	// Closed tracks if Close was called.
	Closed bool

	clock    bool
	shifting bool
	edges    int // rising edges in the current exchange
	word     uint32
	index    int
	busy     int
}

// FakeGainPulses is the number of pulses after the data bits that the fake
// treats as channel/gain selection (channel A, gain 128).
const FakeGainPulses = 1

// NewFakeBus creates a FakeBus that returns the given words.
func NewFakeBus(words ...uint32) *FakeBus {
	return &FakeBus{Words: words}
}

// SetClock applies a clock edge to the simulated shift register.
func (f *FakeBus) SetClock(high bool) error {
	if f.ClockError != nil {
		return f.ClockError
	}

	switch {
	case high && !f.clock:
		if !f.shifting {
			f.shifting = true
			f.edges = 0
			f.word = f.next() & 0xFFFFFF
		}
		f.edges++
	case !high && f.clock:
		f.Pulses++
		if f.shifting && f.edges >= 24+FakeGainPulses {
			f.shifting = false
			f.Exchanges++
			f.busy = f.BusyPolls
		}
	}
	f.clock = high
	return nil
}

// Data returns DOUT. While shifting it carries the bit clocked out by the
// latest rising edge; otherwise it reports busy (high) or ready (low).
func (f *FakeBus) Data() (bool, error) {
	f.DataReads++
	if f.DataError != nil {
		return false, f.DataError
	}

	if f.shifting {
		if f.edges < 1 || f.edges > 24 {
			return true, nil
		}
		return f.word&(1<<uint(24-f.edges)) != 0, nil
	}

	if f.NeverReady {
		return true, nil
	}
	if f.busy > 0 {
		f.busy--
		return true, nil
	}
	return false, nil
}

// ClockHigh reports the current PD_SCK level.
func (f *FakeBus) ClockHigh() bool {
	return f.clock
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the scripted words and clears counters.
func (f *FakeBus) Reset() {
	f.index = 0
	f.Pulses = 0
	f.DataReads = 0
	f.Exchanges = 0
	f.Closed = false
	f.clock = false
	f.shifting = false
	f.edges = 0
	f.busy = 0
}

func (f *FakeBus) next() uint32 {
	if len(f.Words) == 0 {
		return 0
	}
	w := f.Words[f.index]
	if f.index < len(f.Words)-1 {
		f.index++
	}
	return w
}
