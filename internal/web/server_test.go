package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/scale-sensor/internal/hx711"
	"github.com/sweeney/scale-sensor/internal/logic"
	"github.com/sweeney/scale-sensor/internal/status"
)

type fakeTarer struct {
	offset int64
	err    error
	calls  int
}

func (f *fakeTarer) Tare(ctx context.Context) (int64, error) {
	f.calls++
	return f.offset, f.err
}

func newTestServer(t *testing.T, tarer Tarer) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      500,
		DebounceMs:  1000,
		HeartbeatMs: 900000,
		Threshold:   20,
		TareSamples: 10,
		PinData:     5,
		PinClock:    6,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, tarer)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetReading(hx711.Reading{Raw: 1200, Offset: 200, Net: 1000, Weight: 1000}, time.Now())
	tr.Update(1000, true, logic.EventCounts{Up: 5, Down: 2})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Reading == nil || sj.Status.Reading.Net != 1000 {
		t.Errorf("Reading: got %+v", sj.Status.Reading)
	}
	if !sj.Status.Ready {
		t.Error("expected ready")
	}
	if sj.Status.Counts.Up != 5 || sj.Status.Counts.Down != 2 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected")
	}
	if sj.Status.Config.HTTPAddr != ":80" {
		t.Errorf("HTTPAddr: got %q", sj.Status.Config.HTTPAddr)
	}
}

func TestIndexHTML(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetTare(-4096, time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	tr.SetReading(hx711.Reading{Raw: -4097, Offset: -4096, Net: -1, Weight: 0xFFFF}, time.Now())

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		body := readBody(t, resp)
		for _, want := range []string{"Scale Sensor", "-4096", "65535 (0xFFFF)", "settling", "DOUT 5, PD_SCK 6"} {
			if !strings.Contains(body, want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestIndexHTMLNoReading(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "no reading yet") {
		t.Error("expected placeholder before first reading")
	}
	if !strings.Contains(body, "never") {
		t.Error("expected tare time placeholder")
	}
}

func TestUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestTareEndpoint(t *testing.T) {
	tarer := &fakeTarer{offset: 81234}
	ts, _ := newTestServer(t, tarer)

	resp, err := http.Post(ts.URL+"/tare", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /tare: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if tarer.calls != 1 {
		t.Errorf("expected 1 tare call, got %d", tarer.calls)
	}
	want := `{"tare":{"ok":true,"offset":81234}}`
	if body != want {
		t.Errorf("body:\n got %s\nwant %s", body, want)
	}
}

func TestTareEndpointFailure(t *testing.T) {
	tarer := &fakeTarer{offset: 10, err: errors.New("tare sample 0: hx711: timed out waiting for data ready")}
	ts, _ := newTestServer(t, tarer)

	resp, err := http.Post(ts.URL+"/tare", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /tare: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}

	var tj TareJSON
	if err := json.Unmarshal([]byte(body), &tj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if tj.Tare.OK || tj.Tare.Offset != 10 || !strings.Contains(tj.Tare.Error, "timed out") {
		t.Errorf("unexpected body: %+v", tj)
	}
}

func TestTareEndpointRejectsGet(t *testing.T) {
	tarer := &fakeTarer{}
	ts, _ := newTestServer(t, tarer)

	resp, err := http.Get(ts.URL + "/tare")
	if err != nil {
		t.Fatalf("GET /tare: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Errorf("Allow: got %q", resp.Header.Get("Allow"))
	}
	if tarer.calls != 0 {
		t.Error("GET must not tare")
	}
}

func TestTareEndpointDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/tare", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /tare: %v", err)
	}
	resp.Body.Close()

	// Falls through to the index handler, which 404s unknown paths.
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{time.Hour + 5*time.Second, "1h 0m 5s"},
		{50*time.Hour + 3*time.Minute + 1500*time.Millisecond, "2d 2h 3m 1s"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
