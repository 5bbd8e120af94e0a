package logic

import "sync/atomic"

// Controller is the phase control state machine. Tick is called once per
// tick from a single goroutine; SetDimTarget and Stats may be called
// concurrently from any goroutine.
type Controller struct {
	timing Timing

	// Owned by the tick handler.
	state   State
	counter int
	out     Output

	// The only value written outside the tick handler.
	dimTarget atomic.Int32

	crossings atomic.Uint64
	fires     atomic.Uint64
	timeouts  atomic.Uint64
	faults    atomic.Uint64
}

// NewController creates a controller in Idle with the gate off and the dim
// target OFF.
func NewController(timing Timing) *Controller {
	c := &Controller{timing: timing}
	c.dimTarget.Store(int32(timing.SafetyTimeout))
	return c
}

// SetDimTarget sets the phase delay in ticks. A value at or above the safety
// timeout suppresses firing. Negative values fire immediately after the offset.
func (c *Controller) SetDimTarget(ticks int) {
	if ticks < 0 {
		ticks = 0
	}
	if ticks > c.timing.SafetyTimeout {
		ticks = c.timing.SafetyTimeout
	}
	c.dimTarget.Store(int32(ticks))
}

// DimTarget returns the current phase delay in ticks.
func (c *Controller) DimTarget() int {
	return int(c.dimTarget.Load())
}

// Off returns the dim target value meaning OFF.
func (c *Controller) Off() int {
	return c.timing.SafetyTimeout
}

// State returns the current state. Only safe from the tick goroutine.
func (c *Controller) State() State {
	return c.state
}

// Tick advances the state machine by one tick. accepted reports a zero
// crossing that passed the noise gate on this tick.
func (c *Controller) Tick(accepted bool) Output {
	switch c.state {
	case StateIdle:
		if accepted {
			c.counter = 0
			c.out.Heartbeat = !c.out.Heartbeat
			c.crossings.Add(1)
			c.state = StateOffset
		}

	case StateOffset:
		c.counter++
		if c.counter >= c.timing.ZCOffset {
			c.counter = 0
			c.state = StateDelay
		}

	case StateDelay:
		c.counter++
		if c.counter >= int(c.dimTarget.Load()) && c.counter < c.timing.SafetyTimeout {
			c.out.Gate = true
			c.counter = 0
			c.fires.Add(1)
			c.state = StateTrigger
		} else if c.counter >= c.timing.SafetyTimeout {
			c.out.Gate = false
			c.counter = 0
			c.timeouts.Add(1)
			c.state = StateIdle
		}

	case StateTrigger:
		c.counter++
		if c.counter >= c.timing.TriggerPulseWidth {
			c.out.Gate = false
			c.counter = 0
			c.state = StateIdle
		}

	default:
		c.out.Gate = false
		c.counter = 0
		c.faults.Add(1)
		c.state = StateIdle
	}

	return c.out
}

// Stats returns a snapshot of the event counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Crossings: c.crossings.Load(),
		Fires:     c.fires.Load(),
		Timeouts:  c.timeouts.Load(),
		Faults:    c.faults.Load(),
	}
}
