package logic

import "time"

// Detector tracks the net reading and detects settled changes. A reading
// within threshold counts of the stable value is treated as noise.
type Detector struct {
	debounceDuration time.Duration
	threshold        int64
	lvl              level
	baselined        bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a change detector. A new value must hold (within
// threshold) for debounceDuration before it becomes stable. The startTime
// is used for calculating uptime in heartbeat events.
func NewDetector(debounceDuration time.Duration, threshold int64, startTime time.Time) *Detector {
	if threshold < 0 {
		threshold = -threshold
	}
	return &Detector{
		debounceDuration: debounceDuration,
		threshold:        threshold,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new reading and returns the event to emit, if any.
// Events are only returned after baseline is established.
func (d *Detector) Process(input Input) *Event {
	l := &d.lvl
	v := input.Net

	// First stable value becomes the baseline
	if !d.baselined {
		if !l.HasPending || !d.near(v, l.Pending) {
			d.setPending(v, input.Time)
			return nil
		}
		if input.Time.Sub(l.PendingSince) >= d.debounceDuration {
			l.Stable = v
			l.HasPending = false
			d.baselined = true
		}
		return nil
	}

	if d.near(v, l.Stable) {
		// Back within noise of stable, drop any pending change
		l.HasPending = false
		return nil
	}

	if !l.HasPending || !d.near(v, l.Pending) {
		d.setPending(v, input.Time)
		return nil
	}

	if input.Time.Sub(l.PendingSince) < d.debounceDuration {
		return nil
	}

	prev := l.Stable
	l.Stable = v
	l.HasPending = false

	event := &Event{
		Timestamp: input.Time,
		Previous:  prev,
		Net:       v,
		Raw:       input.Raw,
		Weight:    input.Weight,
	}
	if v > prev {
		event.Type = EventWeightUp
		d.eventCounts.Up++
	} else {
		event.Type = EventWeightDown
		d.eventCounts.Down++
	}
	return event
}

func (d *Detector) setPending(v int64, now time.Time) {
	d.lvl.Pending = v
	d.lvl.HasPending = true
	d.lvl.PendingSince = now
}

func (d *Detector) near(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= d.threshold
}

// Rebaseline discards the stable value and any pending change, so the next
// readings establish a new baseline without emitting an event. Call it when
// the zero point moves (after a tare). Counts and heartbeat timing are kept.
func (d *Detector) Rebaseline() {
	d.baselined = false
	d.lvl = level{}
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// Stable returns the current stable net reading.
func (d *Detector) Stable() int64 {
	return d.lvl.Stable
}

// EventCountsSnapshot returns a copy of the event counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
