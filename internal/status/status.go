// Package status provides a thread-safe status tracker for the scale-sensor daemon.
// It is read by HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/scale-sensor/internal/hx711"
	"github.com/sweeney/scale-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Threshold   int64
	TareSamples int
	PinData     int
	PinClock    int
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a copy and may be used after the lock is released.
type Snapshot struct {
	Reading       hx711.Reading
	HasReading    bool
	LastRead      time.Time
	Offset        int64
	LastTare      time.Time
	Stable        int64
	Baselined     bool
	Counts        logic.EventCounts
	ReadErrors    int
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetReading records the latest successful reading. The tracked offset is
// only changed by SetTare; a read that raced a tare still carries the old one.
func (t *Tracker) SetReading(r hx711.Reading, at time.Time) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.HasReading = true
	t.snap.LastRead = at
	t.mu.Unlock()
}

// RecordError counts a failed read.
func (t *Tracker) RecordError(err error) {
	t.mu.Lock()
	t.snap.ReadErrors++
	t.snap.LastError = err.Error()
	t.mu.Unlock()
}

// SetTare records a completed tare.
func (t *Tracker) SetTare(offset int64, at time.Time) {
	t.mu.Lock()
	t.snap.Offset = offset
	t.snap.LastTare = at
	t.mu.Unlock()
}

// Update sets the detector state.
// Called from runLoop on every tick.
func (t *Tracker) Update(stable int64, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Stable = stable
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
