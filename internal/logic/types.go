// Package logic contains the real-time phase control core of the dimmer.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is measured in ticks; the caller drives every step.
package logic

import (
	"errors"
	"fmt"
	"time"
)

// ReferenceTick is the tick period the default constants are expressed in.
const ReferenceTick = 50 * time.Microsecond

// State is the phase control state.
type State uint8

const (
	StateIdle State = iota
	StateOffset
	StateDelay
	StateTrigger
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOffset:
		return "OFFSET"
	case StateDelay:
		return "DELAY"
	case StateTrigger:
		return "TRIGGER"
	}
	return fmt.Sprintf("INVALID(%d)", uint8(s))
}

// Timing holds every tick-count constant of the core.
// All values except Tick are in ticks.
type Timing struct {
	Tick time.Duration

	// Noise gate and phase control.
	MinZCPeriod       int
	ZCOffset          int
	TriggerPulseWidth int
	SafetyTimeout     int

	// Calibration.
	Samples       int
	WindowMin     int
	WindowMax     int
	Margin        int
	NominalPeriod int
	MinBase       int
	MaxDelayMin   int
	MaxDelayMax   int
	MinDelayMin   int
	MinDelayMax   int
}

// DefaultTiming returns the reference constants at a 50µs tick.
func DefaultTiming() Timing {
	return Timing{
		Tick:              ReferenceTick,
		MinZCPeriod:       140,
		ZCOffset:          2,
		TriggerPulseWidth: 6,
		SafetyTimeout:     210,
		Samples:           8,
		WindowMin:         140,
		WindowMax:         220,
		Margin:            9,
		NominalPeriod:     166,
		MinBase:           63,
		MaxDelayMin:       130,
		MaxDelayMax:       195,
		MinDelayMin:       50,
		MinDelayMax:       80,
	}
}

// ScaledTo returns a copy of t with every tick constant rescaled to the given
// tick period, so the physical durations stay the same.
// The sample count is not a duration and is left as is.
func (t Timing) ScaledTo(period time.Duration) Timing {
	if period <= 0 || period == t.Tick {
		return t
	}
	scale := func(v int) int {
		d := time.Duration(v) * t.Tick
		return int((d + period/2) / period)
	}
	return Timing{
		Tick:              period,
		MinZCPeriod:       scale(t.MinZCPeriod),
		ZCOffset:          scale(t.ZCOffset),
		TriggerPulseWidth: scale(t.TriggerPulseWidth),
		SafetyTimeout:     scale(t.SafetyTimeout),
		Samples:           t.Samples,
		WindowMin:         scale(t.WindowMin),
		WindowMax:         scale(t.WindowMax),
		Margin:            scale(t.Margin),
		NominalPeriod:     scale(t.NominalPeriod),
		MinBase:           scale(t.MinBase),
		MaxDelayMin:       scale(t.MaxDelayMin),
		MaxDelayMax:       scale(t.MaxDelayMax),
		MinDelayMin:       scale(t.MinDelayMin),
		MinDelayMax:       scale(t.MinDelayMax),
	}
}

// Validate reports inconsistent constants.
func (t Timing) Validate() error {
	var errs []error
	if t.Tick <= 0 {
		errs = append(errs, errors.New("tick period must be positive"))
	}
	if t.MinZCPeriod <= 0 || t.MinZCPeriod >= int(maxGuard) {
		errs = append(errs, fmt.Errorf("min_zc_period %d out of range (1..%d)", t.MinZCPeriod, int(maxGuard)-1))
	}
	if t.ZCOffset < 0 {
		errs = append(errs, fmt.Errorf("zc_offset %d is negative", t.ZCOffset))
	}
	if t.TriggerPulseWidth <= 0 {
		errs = append(errs, fmt.Errorf("trigger_pulse_width %d must be positive", t.TriggerPulseWidth))
	}
	if t.Samples <= 0 {
		errs = append(errs, fmt.Errorf("samples %d must be positive", t.Samples))
	}
	if t.WindowMin <= 0 || t.WindowMin > t.WindowMax {
		errs = append(errs, fmt.Errorf("calibration window [%d, %d] is empty", t.WindowMin, t.WindowMax))
	}
	if t.NominalPeriod <= 0 {
		errs = append(errs, fmt.Errorf("nominal_period %d must be positive", t.NominalPeriod))
	}
	if t.MaxDelayMin > t.MaxDelayMax {
		errs = append(errs, fmt.Errorf("max delay range [%d, %d] is empty", t.MaxDelayMin, t.MaxDelayMax))
	}
	if t.MinDelayMin > t.MinDelayMax {
		errs = append(errs, fmt.Errorf("min delay range [%d, %d] is empty", t.MinDelayMin, t.MinDelayMax))
	}
	if t.MinDelayMax > t.MaxDelayMin {
		errs = append(errs, fmt.Errorf("min delay range overlaps max delay range (%d > %d)", t.MinDelayMax, t.MaxDelayMin))
	}
	// The gate pulse must finish before the next crossing even at maxDelay.
	if t.ZCOffset+t.TriggerPulseWidth >= t.Margin {
		errs = append(errs, fmt.Errorf("zc_offset + trigger_pulse_width (%d) must be below margin (%d)",
			t.ZCOffset+t.TriggerPulseWidth, t.Margin))
	}
	if t.SafetyTimeout <= t.MaxDelayMax {
		errs = append(errs, fmt.Errorf("safety_timeout %d must exceed max delay ceiling %d", t.SafetyTimeout, t.MaxDelayMax))
	}
	return errors.Join(errs...)
}

// CalibrationResult holds the phase delay bounds derived at boot.
type CalibrationResult struct {
	MinDelay  int
	MaxDelay  int
	AvgPeriod int
}

// Output is the level of each output line after a tick.
type Output struct {
	Gate      bool
	Heartbeat bool
}

// Stats counts core events since startup.
type Stats struct {
	Crossings uint64
	Fires     uint64
	Timeouts  uint64
	Faults    uint64
}
