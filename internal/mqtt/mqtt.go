// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/scale-sensor/internal/logic"
)

// Topic is the MQTT topic for weight change events.
const Topic = "sensors/scale/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "sensors/scale/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a weight event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, tare).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "TARE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Scale ScalePayload `json:"scale"`
}

// ScalePayload contains the weight event details.
type ScalePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Previous  int64  `json:"previous"`
	Net       int64  `json:"net"`
	Raw       int64  `json:"raw"`
	Weight    int64  `json:"weight"`
}

// FormatPayload creates the JSON payload for a weight event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Scale: ScalePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Previous:  event.Previous,
			Net:       event.Net,
			Raw:       event.Raw,
			Weight:    event.Weight,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// willPayload is the last-will message published by the broker if the
// connection drops without a clean disconnect.
func willPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return data
}
