package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Tare          TareJSON     `json:"tare"`
	Stable        int64        `json:"stable"`
	Ready         bool         `json:"ready"`
	ReadErrors    int          `json:"read_errors"`
	LastError     string       `json:"last_error,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the latest reading.
type ReadingJSON struct {
	Raw       int64  `json:"raw"`
	Net       int64  `json:"net"`
	Weight    int64  `json:"weight"`
	Timestamp string `json:"timestamp"`
}

// TareJSON is the JSON representation of the tare state.
type TareJSON struct {
	Offset    int64  `json:"offset"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Up   int `json:"weight_up"`
	Down int `json:"weight_down"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Threshold   int64  `json:"threshold"`
	TareSamples int    `json:"tare_samples"`
	PinData     int    `json:"pin_data"`
	PinClock    int    `json:"pin_clock"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Tare: TareJSON{
			Offset:    snap.Offset,
			Timestamp: formatTime(snap.LastTare),
		},
		Stable:        snap.Stable,
		Ready:         snap.Baselined,
		ReadErrors:    snap.ReadErrors,
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Up:   snap.Counts.Up,
			Down: snap.Counts.Down,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Threshold:   snap.Config.Threshold,
			TareSamples: snap.Config.TareSamples,
			PinData:     snap.Config.PinData,
			PinClock:    snap.Config.PinClock,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.HasReading {
		inner.Reading = &ReadingJSON{
			Raw:       snap.Reading.Raw,
			Net:       snap.Reading.Net,
			Weight:    snap.Reading.Weight,
			Timestamp: formatTime(snap.LastRead),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
