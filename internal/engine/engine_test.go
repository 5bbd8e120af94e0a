package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/triac-dimmer/internal/gpio"
	"github.com/sweeney/triac-dimmer/internal/logic"
)

// mains returns a zero-cross line with the given half-cycle in ticks.
func mains(period int) func(n int) bool {
	return func(n int) bool { return n%period < period/3 }
}

// calibrate ticks the engine until calibration finishes or maxTicks pass.
func calibrate(t *testing.T, e *Engine, maxTicks int) logic.CalibrationResult {
	t.Helper()
	type result struct {
		res logic.CalibrationResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := e.Calibrate(context.Background())
		done <- result{res, err}
	}()

	for i := 0; i < maxTicks; i++ {
		e.HandleTick()
		select {
		case r := <-done:
			if r.err != nil {
				t.Fatalf("calibrate: %v", r.err)
			}
			return r.res
		default:
		}
	}

	// The calibrator may still be draining queued edges.
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("calibrate: %v", r.err)
		}
		return r.res
	case <-time.After(2 * time.Second):
		t.Fatalf("calibration did not finish within %d ticks", maxTicks)
	}
	return logic.CalibrationResult{}
}

func TestEngineCalibratesThenFires(t *testing.T) {
	timing := logic.DefaultTiming()
	pins := gpio.NewFakePins(nil)
	pins.Level = mains(166)
	e := New(pins, timing)

	res := calibrate(t, e, 166*40)
	if res.MinDelay != 62 || res.MaxDelay != 157 {
		t.Fatalf("bounds: got {%d, %d}, want {62, 157}", res.MinDelay, res.MaxDelay)
	}
	if !e.Running() {
		t.Fatal("engine should be running after calibration")
	}
	if len(pins.WritesTo(gpio.LineGate)) != 0 {
		t.Fatal("gate must stay low during calibration")
	}

	// The half-cycle in flight may still carry the OFF target; count from a
	// later crossing.
	e.SetDimTarget(res.MinDelay)
	base := (pins.Reads()/166 + 3) * 166
	for pins.Reads() < base+166*10 {
		e.HandleTick()
	}

	var writes []gpio.Write
	for _, w := range pins.WritesTo(gpio.LineGate) {
		if w.Read-1 >= base {
			writes = append(writes, w)
		}
	}
	if len(writes) != 20 {
		t.Fatalf("expected 10 pulses, got %d gate writes", len(writes))
	}
	for i := 0; i+1 < len(writes); i += 2 {
		on, off := writes[i], writes[i+1]
		if !on.Level || off.Level {
			t.Fatalf("writes %d,%d: expected on/off pair, got %+v %+v", i, i+1, on, off)
		}
		if w := off.Read - on.Read; w != timing.TriggerPulseWidth {
			t.Errorf("pulse %d: width %d, want %d", i/2, w, timing.TriggerPulseWidth)
		}
		// Read is 1-based: the write happens after read n = Read-1.
		if phase := (on.Read - 1) % 166; phase != timing.ZCOffset+res.MinDelay {
			t.Errorf("pulse %d: fired %d ticks after crossing, want %d", i/2, phase, timing.ZCOffset+res.MinDelay)
		}
	}
}

func TestEngineOffNeverFires(t *testing.T) {
	pins := gpio.NewFakePins(nil)
	pins.Level = mains(166)
	e := New(pins, logic.DefaultTiming())
	calibrate(t, e, 166*40)

	for i := 0; i < 166*10; i++ {
		e.HandleTick()
	}

	if n := len(pins.WritesTo(gpio.LineGate)); n != 0 {
		t.Errorf("expected no gate writes while OFF, got %d", n)
	}
	if len(pins.WritesTo(gpio.LineHeartbeat)) == 0 {
		t.Error("expected heartbeat toggles while running")
	}
	if e.Stats().Timeouts == 0 {
		t.Error("expected safety timeouts while OFF")
	}
}

func TestEngineReadErrorsCounted(t *testing.T) {
	pins := gpio.NewFakePins([]bool{true})
	pins.ReadError = errors.New("gpio fault")
	e := New(pins, logic.DefaultTiming())

	for i := 0; i < 5; i++ {
		e.HandleTick()
	}

	stats := e.Stats()
	if stats.ReadErrors != 5 {
		t.Errorf("ReadErrors: got %d, want 5", stats.ReadErrors)
	}
	if stats.Ticks != 5 {
		t.Errorf("Ticks: got %d, want 5", stats.Ticks)
	}
}

func TestEngineWriteErrorsRetried(t *testing.T) {
	pins := gpio.NewFakePins(nil)
	pins.Level = mains(166)
	e := New(pins, logic.DefaultTiming())
	calibrate(t, e, 166*40)
	e.SetDimTarget(80)

	pins.WriteError = errors.New("gpio fault")
	for i := 0; i < 166*2; i++ {
		e.HandleTick()
	}
	if e.Stats().WriteErrors == 0 {
		t.Fatal("expected write errors")
	}

	// Once writes succeed again the pins follow the controller.
	pins.WriteError = nil
	for i := 0; i < 166*2; i++ {
		e.HandleTick()
	}
	if len(pins.WritesTo(gpio.LineGate)) == 0 {
		t.Error("expected gate writes after recovery")
	}
}

func TestEngineDropsEdgesWhenNobodyListens(t *testing.T) {
	// Alternating level produces an edge every tick.
	pins := gpio.NewFakePins(nil)
	pins.Level = func(n int) bool { return n%2 == 0 }
	e := New(pins, logic.DefaultTiming())

	for i := 0; i < edgeBuffer+10; i++ {
		e.HandleTick()
	}
	if got := e.Stats().DroppedEdges; got != 10 {
		t.Errorf("DroppedEdges: got %d, want 10", got)
	}
}

func TestEngineCalibrateTwice(t *testing.T) {
	pins := gpio.NewFakePins(nil)
	pins.Level = mains(166)
	e := New(pins, logic.DefaultTiming())
	calibrate(t, e, 166*40)

	_, err := e.Calibrate(context.Background())
	if !errors.Is(err, ErrCalibrated) {
		t.Errorf("expected ErrCalibrated, got %v", err)
	}
}

func TestEngineCalibrateCancelled(t *testing.T) {
	pins := gpio.NewFakePins([]bool{false})
	e := New(pins, logic.DefaultTiming())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Calibrate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if e.Running() {
		t.Error("engine must not run without calibration")
	}
}
