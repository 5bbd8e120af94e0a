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
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Ready         bool             `json:"ready"`
	Calibration   *CalibrationJSON `json:"calibration,omitempty"`
	Brightness    int              `json:"brightness"`
	DimTarget     int              `json:"dim_target"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Counts        CountsJSON       `json:"counts"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// CalibrationJSON is the JSON representation of the calibrated bounds.
type CalibrationJSON struct {
	MinDelay  int `json:"min_delay"`
	MaxDelay  int `json:"max_delay"`
	AvgPeriod int `json:"avg_period"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the engine counters.
type CountsJSON struct {
	Ticks        uint64 `json:"ticks"`
	Crossings    uint64 `json:"crossings"`
	Fires        uint64 `json:"fires"`
	Timeouts     uint64 `json:"timeouts"`
	Faults       uint64 `json:"faults"`
	ReadErrors   uint64 `json:"read_errors"`
	WriteErrors  uint64 `json:"write_errors"`
	DroppedEdges uint64 `json:"dropped_edges"`
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
	TickUs        int64  `json:"tick_us"`
	MinZCPeriod   int    `json:"min_zc_period"`
	ZCOffset      int    `json:"zc_offset"`
	PulseWidth    int    `json:"trigger_pulse_width"`
	SafetyTimeout int    `json:"safety_timeout"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Driver        string `json:"driver"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	WSBroker      string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Calibrated,
		Brightness:    snap.Percent,
		DimTarget:     snap.DimTarget,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:        snap.Stats.Ticks,
			Crossings:    snap.Stats.Crossings,
			Fires:        snap.Stats.Fires,
			Timeouts:     snap.Stats.Timeouts,
			Faults:       snap.Stats.Faults,
			ReadErrors:   snap.Stats.ReadErrors,
			WriteErrors:  snap.Stats.WriteErrors,
			DroppedEdges: snap.Stats.DroppedEdges,
		},
		Config: ConfigJSON{
			TickUs:        snap.Config.TickUs,
			MinZCPeriod:   snap.Config.MinZCPeriod,
			ZCOffset:      snap.Config.ZCOffset,
			PulseWidth:    snap.Config.PulseWidth,
			SafetyTimeout: snap.Config.SafetyTimeout,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Driver:        snap.Config.Driver,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			WSBroker:      snap.Config.WSBroker,
		},
	}
	if snap.Calibrated {
		inner.Calibration = &CalibrationJSON{
			MinDelay:  snap.Bounds.MinDelay,
			MaxDelay:  snap.Bounds.MaxDelay,
			AvgPeriod: snap.Bounds.AvgPeriod,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
