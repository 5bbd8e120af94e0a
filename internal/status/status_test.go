package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/triac-dimmer/internal/engine"
	"github.com/sweeney/triac-dimmer/internal/logic"
)

func testConfig() Config {
	return Config{
		TickUs:        50,
		MinZCPeriod:   140,
		ZCOffset:      2,
		PulseWidth:    6,
		SafetyTimeout: 210,
		HeartbeatMs:   900000,
		Driver:        "gpiocdev",
		Broker:        "tcp://localhost:1883",
		HTTPAddr:      ":80",
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickUs != 50 {
		t.Errorf("Config.TickUs: got %d, want 50", snap.Config.TickUs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Calibrated {
		t.Error("expected Calibrated=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestSetCalibrationAndBrightness(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetCalibration(logic.CalibrationResult{MinDelay: 62, MaxDelay: 157, AvgPeriod: 166})
	tr.SetBrightness(50, 110)
	tr.SetStats(engine.Stats{Stats: logic.Stats{Fires: 3}, Ticks: 1000})

	snap := tr.Snapshot()
	if !snap.Calibrated {
		t.Error("expected Calibrated=true")
	}
	if snap.Bounds.MaxDelay != 157 {
		t.Errorf("Bounds.MaxDelay: got %d, want 157", snap.Bounds.MaxDelay)
	}
	if snap.Percent != 50 {
		t.Errorf("Percent: got %d, want 50", snap.Percent)
	}
	if snap.DimTarget != 110 {
		t.Errorf("DimTarget: got %d, want 110", snap.DimTarget)
	}
	if snap.Stats.Fires != 3 {
		t.Errorf("Stats.Fires: got %d, want 3", snap.Stats.Fires)
	}
	if snap.Stats.Ticks != 1000 {
		t.Errorf("Stats.Ticks: got %d, want 1000", snap.Stats.Ticks)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetBrightness(20, 138)

	snap1 := tr.Snapshot()

	tr.SetBrightness(80, 81)

	if snap1.Percent != 20 {
		t.Error("snapshot should be a copy; Percent was modified")
	}
	if snap1.DimTarget != 138 {
		t.Error("snapshot should be a copy; DimTarget was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Calibrated:    true,
		Bounds:        logic.CalibrationResult{MinDelay: 62, MaxDelay: 157, AvgPeriod: 166},
		Percent:       75,
		DimTarget:     86,
		Stats:         engine.Stats{Stats: logic.Stats{Crossings: 120, Fires: 118, Timeouts: 2}, Ticks: 20000},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        testConfig(),
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if !parsed.Status.Ready {
		t.Error("expected Ready=true")
	}
	if parsed.Status.Calibration == nil {
		t.Fatal("expected calibration in JSON")
	}
	if parsed.Status.Calibration.MinDelay != 62 || parsed.Status.Calibration.MaxDelay != 157 {
		t.Errorf("Calibration: got %+v, want {62 157 166}", *parsed.Status.Calibration)
	}
	if parsed.Status.Brightness != 75 {
		t.Errorf("Brightness: got %d, want 75", parsed.Status.Brightness)
	}
	if parsed.Status.DimTarget != 86 {
		t.Errorf("DimTarget: got %d, want 86", parsed.Status.DimTarget)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.MQTT.Connected != true {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Fires != 118 {
		t.Errorf("Counts.Fires: got %d, want 118", parsed.Status.Counts.Fires)
	}
	if parsed.Status.Counts.Ticks != 20000 {
		t.Errorf("Counts.Ticks: got %d, want 20000", parsed.Status.Counts.Ticks)
	}
	if parsed.Status.Config.SafetyTimeout != 210 {
		t.Errorf("Config.SafetyTimeout: got %d, want 210", parsed.Status.Config.SafetyTimeout)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeCalibration(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["calibration"]; exists {
		t.Error("calibration should be omitted before calibration completes")
	}
	if status["ready"] != false {
		t.Errorf("ready: got %v, want false", status["ready"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Calibrated:    true,
		Bounds:        logic.CalibrationResult{MinDelay: 62, MaxDelay: 157, AvgPeriod: 166},
		Percent:       100,
		DimTarget:     62,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        testConfig(),
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Brightness != 100 {
		t.Errorf("Brightness: got %d, want 100", parsed.Status.Brightness)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.SetBrightness(i%101, i)
			tr.SetStats(engine.Stats{Ticks: uint64(i)})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
