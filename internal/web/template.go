package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/scale-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"hex16": func(v int64) string {
		return fmt.Sprintf("0x%04X", v&0xFFFF)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

// formatUptime renders d as e.g. "2d 3h 4m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}
	var b strings.Builder
	for i, p := range parts {
		if b.Len() == 0 && p.n == 0 && i < len(parts)-1 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d%s", p.n, p.unit)
	}
	return b.String()
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Scale Sensor</title>
<style>
body { font: 14px/1.4 monospace; max-width: 640px; margin: 1.5em auto; padding: 0 1em; color: #222; }
h1 { font-size: 1.3em; margin-bottom: 0.2em; }
h2 { font-size: 1.05em; margin: 1.4em 0 0.3em; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 3px 6px; text-align: left; border-bottom: 1px solid #e4e4e4; }
th { width: 38%; font-weight: normal; color: #555; }
form { margin: 0.6em 0; }
.ready, .connected { color: #1a7f37; }
.ready { font-weight: bold; }
.unknown { color: #b26b00; }
.disconnected { color: #c62828; }
</style>
</head>
<body>
<h1>Scale Sensor</h1>

<h2>Reading</h2>
<table>
{{if .HasReading}}<tr><th>Net</th><td id="net">{{.Reading.Net}}</td></tr>
<tr><th>Weight (16-bit)</th><td id="weight">{{.Reading.Weight}} ({{hex16 .Reading.Weight}})</td></tr>
<tr><th>Raw</th><td>{{.Reading.Raw}}</td></tr>
<tr><th>Read at</th><td>{{stamp .LastRead}}</td></tr>
{{else}}<tr><th>Net</th><td class="unknown">no reading yet</td></tr>
{{end}}<tr><th>Stable</th><td class="{{if .Baselined}}ready{{else}}unknown{{end}}">{{if .Baselined}}{{.Stable}}{{else}}settling{{end}}</td></tr>
<tr><th>Read errors</th><td>{{.ReadErrors}}{{if .LastError}} ({{.LastError}}){{end}}</td></tr>
</table>

<h2>Tare</h2>
<table>
<tr><th>Offset</th><td id="offset">{{.Offset}}</td></tr>
<tr><th>Last tare</th><td>{{stamp .LastTare}}</td></tr>
<tr><th>Samples</th><td>{{.Config.TareSamples}}</td></tr>
</table>
<form method="post" action="/tare"><button type="submit">Tare</button></form>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Weight up</th><td>{{.Counts.Up}}</td></tr>
<tr><th>Weight down</th><td>{{.Counts.Down}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Pins</th><td>DOUT {{.Config.PinData}}, PD_SCK {{.Config.PinClock}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	view := struct {
		status.Snapshot
		Uptime time.Duration // shadows Snapshot.Uptime for the template
	}{snap, snap.Uptime()}
	return indexTmpl.Execute(w, view)
}
