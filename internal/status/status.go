// Package status provides a thread-safe status tracker for the dimmer daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/triac-dimmer/internal/engine"
	"github.com/sweeney/triac-dimmer/internal/logic"
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
	TickUs        int64
	MinZCPeriod   int
	ZCOffset      int
	PulseWidth    int
	SafetyTimeout int
	HeartbeatMs   int64
	Driver        string
	Broker        string
	HTTPAddr      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
	StateTopic    string // Topic the status page subscribes to for live updates
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Calibrated    bool
	Bounds        logic.CalibrationResult
	Percent       int
	DimTarget     int
	Stats         engine.Stats
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

// SetCalibration records the calibrated delay bounds.
func (t *Tracker) SetCalibration(bounds logic.CalibrationResult) {
	t.mu.Lock()
	t.snap.Calibrated = true
	t.snap.Bounds = bounds
	t.mu.Unlock()
}

// SetBrightness records the commanded brightness and the resulting dim target.
func (t *Tracker) SetBrightness(percent, dimTarget int) {
	t.mu.Lock()
	t.snap.Percent = percent
	t.snap.DimTarget = dimTarget
	t.mu.Unlock()
}

// SetStats records the engine counters.
func (t *Tracker) SetStats(stats engine.Stats) {
	t.mu.Lock()
	t.snap.Stats = stats
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
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
