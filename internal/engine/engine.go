// Package engine wires the phase control core to the pins and the tick source.
// HandleTick is the tick handler: it never blocks, allocates or logs.
package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sweeney/triac-dimmer/internal/gpio"
	"github.com/sweeney/triac-dimmer/internal/logic"
)

// edgeBuffer bounds the edges queued for calibration. The calibration
// goroutine drains it far faster than mains edges arrive.
const edgeBuffer = 64

// ErrCalibrated is returned by Calibrate when the engine is already running.
var ErrCalibrated = errors.New("engine: already calibrated")

// Stats counts engine and core events since startup.
type Stats struct {
	logic.Stats
	Ticks        uint64
	ReadErrors   uint64
	WriteErrors  uint64
	DroppedEdges uint64
}

// Engine owns the core state. HandleTick must be called from a single
// goroutine; every other method is safe from any goroutine.
type Engine struct {
	pins   gpio.Pins
	timing logic.Timing

	// Owned by the tick handler.
	rawEdges logic.EdgeDetector
	gate     logic.NoiseGate
	ctrl     *logic.Controller
	written  logic.Output

	running atomic.Bool
	edges   chan logic.EdgeEvent

	ticks        atomic.Uint32
	ticksTotal   atomic.Uint64
	readErrors   atomic.Uint64
	writeErrors  atomic.Uint64
	droppedEdges atomic.Uint64
}

// New creates an engine in calibration mode with every output low.
func New(pins gpio.Pins, timing logic.Timing) *Engine {
	return &Engine{
		pins:     pins,
		timing:   timing,
		rawEdges: logic.NewEdgeDetector(false),
		gate:     logic.NewNoiseGate(timing.MinZCPeriod),
		ctrl:     logic.NewController(timing),
		edges:    make(chan logic.EdgeEvent, edgeBuffer),
	}
}

// HandleTick runs one tick.
func (e *Engine) HandleTick() {
	tick := e.ticks.Add(1)
	e.ticksTotal.Add(1)

	level, err := e.pins.ReadInput()
	if err != nil {
		// A failed read looks like an idle line: no edge, no crossing.
		e.readErrors.Add(1)
		level = false
	}
	rising, falling := e.rawEdges.Sample(level)

	if !e.running.Load() {
		if rising || falling {
			select {
			case e.edges <- logic.EdgeEvent{Rising: rising, Tick: tick}:
			default:
				e.droppedEdges.Add(1)
			}
		}
		e.write(logic.Output{})
		return
	}

	e.write(e.ctrl.Tick(e.gate.Accept(rising)))
}

// write drives the outputs that changed since the last tick.
func (e *Engine) write(out logic.Output) {
	if out.Gate != e.written.Gate {
		if err := e.pins.SetOutput(gpio.LineGate, out.Gate); err != nil {
			e.writeErrors.Add(1)
		} else {
			e.written.Gate = out.Gate
		}
	}
	if out.Heartbeat != e.written.Heartbeat {
		if err := e.pins.SetOutput(gpio.LineHeartbeat, out.Heartbeat); err != nil {
			e.writeErrors.Add(1)
		} else {
			e.written.Heartbeat = out.Heartbeat
		}
	}
}

// NextEdge returns the next raw edge seen while calibrating.
func (e *Engine) NextEdge(ctx context.Context) (logic.EdgeEvent, error) {
	select {
	case ev := <-e.edges:
		return ev, nil
	case <-ctx.Done():
		return logic.EdgeEvent{}, ctx.Err()
	}
}

// Calibrate measures the mains half-cycle from edges produced by HandleTick
// and then switches the engine to phase control. It blocks until calibration
// completes or ctx is done; the tick source must be running meanwhile.
func (e *Engine) Calibrate(ctx context.Context) (logic.CalibrationResult, error) {
	if e.running.Load() {
		return logic.CalibrationResult{}, ErrCalibrated
	}
	c := logic.NewCalibrator(e.timing, e)
	res, err := c.Run(ctx)
	if err != nil {
		return logic.CalibrationResult{}, err
	}
	e.running.Store(true)
	return res, nil
}

// Running reports whether calibration has completed.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// SetDimTarget sets the phase delay in ticks.
func (e *Engine) SetDimTarget(ticks int) {
	e.ctrl.SetDimTarget(ticks)
}

// DimTarget returns the phase delay in ticks.
func (e *Engine) DimTarget() int {
	return e.ctrl.DimTarget()
}

// Timing returns the constants the engine runs with.
func (e *Engine) Timing() logic.Timing {
	return e.timing
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Stats:        e.ctrl.Stats(),
		Ticks:        e.ticksTotal.Load(),
		ReadErrors:   e.readErrors.Load(),
		WriteErrors:  e.writeErrors.Load(),
		DroppedEdges: e.droppedEdges.Load(),
	}
}
