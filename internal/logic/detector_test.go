package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func in(net int64, ms int) Input {
	return Input{Raw: net + 1000, Net: net, Weight: net & 0xFFFF, Time: at(ms)}
}

// setupBaselinedDetector returns a detector baselined at net with a 250ms
// debounce and threshold 5.
func setupBaselinedDetector(t *testing.T, net int64) *Detector {
	t.Helper()
	d := NewDetector(250*time.Millisecond, 5, t0)
	d.Process(in(net, 0))
	d.Process(in(net, 250))
	if !d.IsBaselined() {
		t.Fatal("setup: detector should be baselined")
	}
	return d
}

func TestNewDetector(t *testing.T) {
	d := NewDetector(250*time.Millisecond, -5, t0)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.debounceDuration != 250*time.Millisecond {
		t.Errorf("expected debounce duration 250ms, got %v", d.debounceDuration)
	}
	if d.threshold != 5 {
		t.Errorf("expected threshold 5, got %d", d.threshold)
	}
	if d.baselined {
		t.Error("new detector should not be baselined")
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
}

func TestBaselineEstablishment(t *testing.T) {
	d := NewDetector(250*time.Millisecond, 5, t0)

	if e := d.Process(in(100, 0)); e != nil {
		t.Errorf("expected no event during baseline, got %+v", e)
	}
	if d.IsBaselined() {
		t.Error("should not be baselined after first sample")
	}

	// Noise within threshold does not restart the timer
	d.Process(in(103, 200))
	if d.IsBaselined() {
		t.Error("should not be baselined before debounce period")
	}

	if e := d.Process(in(98, 250)); e != nil {
		t.Errorf("expected no event at baseline establishment, got %+v", e)
	}
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce period")
	}
	if d.Stable() != 98 {
		t.Errorf("expected stable 98, got %d", d.Stable())
	}
}

func TestBaselineResetOnChange(t *testing.T) {
	d := NewDetector(250*time.Millisecond, 5, t0)

	d.Process(in(100, 0))
	d.Process(in(500, 100)) // outside threshold, timer restarts

	d.Process(in(500, 250))
	if d.IsBaselined() {
		t.Error("baseline timer should have restarted")
	}

	d.Process(in(500, 350))
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce from the change")
	}
	if d.Stable() != 500 {
		t.Errorf("expected stable 500, got %d", d.Stable())
	}
}

func TestNoEventsWithinThreshold(t *testing.T) {
	d := setupBaselinedDetector(t, 0)

	for i, v := range []int64{1, -1, 5, -5, 3, 0, 4, -2, 2, 5} {
		if e := d.Process(in(v, 300+i*100)); e != nil {
			t.Errorf("iteration %d: expected no event for noise, got %+v", i, e)
		}
	}
}

func TestWeightUp(t *testing.T) {
	d := setupBaselinedDetector(t, 0)

	if e := d.Process(in(2000, 400)); e != nil {
		t.Fatalf("expected no event before debounce, got %+v", e)
	}
	if e := d.Process(in(2002, 500)); e != nil {
		t.Fatalf("expected no event before debounce, got %+v", e)
	}

	e := d.Process(in(2001, 650))
	if e == nil {
		t.Fatal("expected WEIGHT_UP event")
	}
	if e.Type != EventWeightUp {
		t.Errorf("expected WEIGHT_UP, got %s", e.Type)
	}
	if e.Previous != 0 || e.Net != 2001 {
		t.Errorf("expected 0 -> 2001, got %d -> %d", e.Previous, e.Net)
	}
	if e.Raw != 3001 {
		t.Errorf("expected raw 3001, got %d", e.Raw)
	}
	if !e.Timestamp.Equal(at(650)) {
		t.Errorf("unexpected timestamp %v", e.Timestamp)
	}
	if d.Stable() != 2001 {
		t.Errorf("expected stable 2001, got %d", d.Stable())
	}
}

func TestWeightDown(t *testing.T) {
	d := setupBaselinedDetector(t, 2000)

	d.Process(in(-40, 400))
	e := d.Process(in(-40, 650))
	if e == nil {
		t.Fatal("expected WEIGHT_DOWN event")
	}
	if e.Type != EventWeightDown {
		t.Errorf("expected WEIGHT_DOWN, got %s", e.Type)
	}
	if e.Weight != -40&0xFFFF {
		t.Errorf("expected masked weight %d, got %d", -40&0xFFFF, e.Weight)
	}
}

func TestBounceRejection(t *testing.T) {
	d := setupBaselinedDetector(t, 0)

	d.Process(in(800, 300))
	// Returns to stable before debounce completes
	d.Process(in(1, 400))
	if e := d.Process(in(800, 600)); e != nil {
		t.Errorf("pending change should have been cleared, got %+v", e)
	}
	if e := d.Process(in(800, 700)); e != nil {
		t.Errorf("debounce restarted at 600ms, got %+v", e)
	}
	if e := d.Process(in(800, 850)); e == nil {
		t.Error("expected event after debounce from 600ms")
	}
}

func TestPendingMovesWhileSettling(t *testing.T) {
	d := setupBaselinedDetector(t, 0)

	d.Process(in(500, 300))
	d.Process(in(900, 400)) // a different level restarts the pending timer
	if e := d.Process(in(900, 600)); e != nil {
		t.Errorf("expected no event before debounce from 400ms, got %+v", e)
	}
	e := d.Process(in(900, 650))
	if e == nil || e.Net != 900 {
		t.Fatalf("expected event to 900, got %+v", e)
	}
}

func TestEventCounts(t *testing.T) {
	d := setupBaselinedDetector(t, 0)

	steps := []int64{1000, 0, 2000, 3000}
	ms := 300
	for _, v := range steps {
		d.Process(in(v, ms))
		d.Process(in(v, ms+250))
		ms += 500
	}

	c := d.EventCountsSnapshot()
	if c.Up != 3 || c.Down != 1 {
		t.Errorf("expected up=3 down=1, got %+v", c)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	d := NewDetector(250*time.Millisecond, 5, t0)

	if hb := d.CheckHeartbeat(at(60000), time.Minute); hb != nil {
		t.Error("no heartbeat before baseline")
	}

	d.Process(in(0, 0))
	d.Process(in(0, 250))

	if hb := d.CheckHeartbeat(at(30000), time.Minute); hb != nil {
		t.Error("no heartbeat before interval")
	}
	if hb := d.CheckHeartbeat(at(60000), 0); hb != nil {
		t.Error("no heartbeat when disabled")
	}

	hb := d.CheckHeartbeat(at(60000), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != time.Minute {
		t.Errorf("expected uptime 1m, got %v", hb.Uptime)
	}

	if hb := d.CheckHeartbeat(at(90000), time.Minute); hb != nil {
		t.Error("heartbeat interval restarts after each heartbeat")
	}
	if hb := d.CheckHeartbeat(at(120000), time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestRebaselineSuppressesZeroShift(t *testing.T) {
	d := setupBaselinedDetector(t, 5000)
	d.Process(in(6000, 300))
	if e := d.Process(in(6000, 600)); e == nil || e.Type != EventWeightUp {
		t.Fatalf("expected WEIGHT_UP before rebaseline, got %+v", e)
	}

	// Tare moves the zero point: the same load now reads 0.
	d.Rebaseline()
	if d.IsBaselined() {
		t.Error("should not be baselined after Rebaseline")
	}
	for ms := 700; ms <= 1200; ms += 100 {
		if e := d.Process(in(0, ms)); e != nil {
			t.Errorf("expected no event after rebaseline at %dms, got %+v", ms, e)
		}
	}
	if !d.IsBaselined() || d.Stable() != 0 {
		t.Errorf("expected new baseline 0, got baselined=%v stable=%d", d.IsBaselined(), d.Stable())
	}

	if c := d.EventCountsSnapshot(); c.Up != 1 || c.Down != 0 {
		t.Errorf("counts must survive rebaseline, got %+v", c)
	}

	// Changes after the new baseline are reported as usual.
	d.Process(in(-300, 1300))
	if e := d.Process(in(-300, 1600)); e == nil || e.Type != EventWeightDown || e.Previous != 0 {
		t.Errorf("expected WEIGHT_DOWN from 0, got %+v", e)
	}
}
