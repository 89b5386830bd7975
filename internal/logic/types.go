// Package logic contains pure business logic for weight change detection.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// EventType represents a settled weight change.
type EventType string

const (
	EventWeightUp   EventType = "WEIGHT_UP"
	EventWeightDown EventType = "WEIGHT_DOWN"
)

// Event represents a settled change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Previous  int64 // stable net reading before the change
	Net       int64 // new stable net reading
	Raw       int64
	Weight    int64 // masked weight reported by the device
}

// Input represents a single tared reading.
type Input struct {
	Raw    int64
	Net    int64
	Weight int64
	Time   time.Time
}

// level tracks debounce state for the net reading.
type level struct {
	// Current stable (debounced) value
	Stable int64
	// Pending value during debounce
	Pending    int64
	HasPending bool
	// Time when pending value was first observed
	PendingSince time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Up   int
	Down int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
