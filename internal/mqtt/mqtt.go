// Package mqtt provides MQTT publishing and command intake with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// DefaultPrefix is the default topic prefix.
const DefaultPrefix = "home/dimmer"

// Topics holds the topics used by the dimmer.
type Topics struct {
	System string // lifecycle events and status snapshots
	State  string // retained brightness state
	Set    string // brightness commands
}

// NewTopics derives the topics from a prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		System: prefix + "/system",
		State:  prefix + "/state",
		Set:    prefix + "/set",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishState sends a brightness change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishState(event StateEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandHandler receives the raw payload of a brightness command.
type CommandHandler func(payload string)

// Subscriber delivers brightness commands.
type Subscriber interface {
	// Subscribe registers the handler for commands on the set topic.
	// The handler runs on a client goroutine and must not block.
	Subscribe(handler CommandHandler) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateEvent is a change of the commanded brightness.
type StateEvent struct {
	Timestamp time.Time
	Percent   int
	DimTarget int
	Source    string // e.g. "mqtt", "http", "startup"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatePayload is the MQTT message payload for brightness state.
type StatePayload struct {
	Dimmer DimmerPayload `json:"dimmer"`
}

// DimmerPayload contains the brightness details.
type DimmerPayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Percent   int    `json:"brightness"`
	DimTarget int    `json:"dim_target"`
	Source    string `json:"source,omitempty"`
}

// FormatStatePayload creates the JSON payload for a brightness change.
func FormatStatePayload(event StateEvent) ([]byte, error) {
	state := "ON"
	if event.Percent <= 0 {
		state = "OFF"
	}
	payload := StatePayload{
		Dimmer: DimmerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			State:     state,
			Percent:   event.Percent,
			DimTarget: event.DimTarget,
			Source:    event.Source,
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
