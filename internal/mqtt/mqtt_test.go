package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewTopics(t *testing.T) {
	topics := NewTopics("lab/dimmer")
	if topics.System != "lab/dimmer/system" {
		t.Errorf("System: got %q", topics.System)
	}
	if topics.State != "lab/dimmer/state" {
		t.Errorf("State: got %q", topics.State)
	}
	if topics.Set != "lab/dimmer/set" {
		t.Errorf("Set: got %q", topics.Set)
	}
}

func TestNewTopicsDefaultPrefix(t *testing.T) {
	topics := NewTopics("")
	if topics.Set != DefaultPrefix+"/set" {
		t.Errorf("Set: got %q, want %q", topics.Set, DefaultPrefix+"/set")
	}
}

func TestFormatStatePayload(t *testing.T) {
	event := StateEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Percent:   40,
		DimTarget: 119,
		Source:    "mqtt",
	}

	payload, err := FormatStatePayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"dimmer":{"timestamp":"2026-02-02T22:18:12Z","state":"ON","brightness":40,"dim_target":119,"source":"mqtt"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatStatePayloadOff(t *testing.T) {
	payload, err := FormatStatePayload(StateEvent{Timestamp: time.Now(), Percent: 0, DimTarget: 210})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed StatePayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Dimmer.State != "OFF" {
		t.Errorf("State: got %q, want OFF", parsed.Dimmer.State)
	}
	if parsed.Dimmer.Source != "" {
		t.Errorf("Source: got %q, want empty", parsed.Dimmer.Source)
	}
}

func TestFormatStatePayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := StateEvent{
		Timestamp: time.Date(2026, 2, 3, 0, 18, 12, 0, loc),
		Percent:   10,
	}

	payload, _ := FormatStatePayload(event)

	var parsed StatePayload
	json.Unmarshal(payload, &parsed)
	if parsed.Dimmer.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Dimmer.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishState(StateEvent{Timestamp: time.Now(), Percent: 50, DimTarget: 110}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.StateEvents) != 1 || len(f.StatePayloads) != 1 {
		t.Fatalf("expected 1 state event and payload, got %d/%d", len(f.StateEvents), len(f.StatePayloads))
	}
	if f.StateEvents[0].Percent != 50 {
		t.Errorf("Percent: got %d, want 50", f.StateEvents[0].Percent)
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("expected 1 retained system event, got %+v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishStateError = errors.New("state failed")
	f.PublishSystemError = errors.New("system failed")

	if err := f.PublishState(StateEvent{}); err == nil || err.Error() != "state failed" {
		t.Errorf("PublishState: got %v, want state failed", err)
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil || err.Error() != "system failed" {
		t.Errorf("PublishSystem: got %v, want system failed", err)
	}
	if len(f.StateEvents) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherDeliver(t *testing.T) {
	f := NewFakePublisher()

	if f.Deliver("50") {
		t.Error("Deliver should report false without a subscriber")
	}

	var got []string
	if err := f.Subscribe(func(p string) { got = append(got, p) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Deliver("ON")
	f.Deliver("20")

	if len(got) != 2 || got[0] != "ON" || got[1] != "20" {
		t.Errorf("delivered: got %v, want [ON 20]", got)
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishState(StateEvent{})
	f.PublishSystem(SystemEvent{})
	f.Subscribe(func(string) {})
	f.Close()
	f.Connected = true

	f.Reset()

	if f.StateEvents != nil || f.SystemEvents != nil {
		t.Error("events should be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("flags should be cleared")
	}
	if f.Deliver("x") {
		t.Error("handler should be cleared")
	}
}
