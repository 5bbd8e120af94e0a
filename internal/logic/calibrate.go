package logic

import "context"

// EdgeEvent is a transition of the raw zero-cross line.
// Tick is the value of a free-running tick counter when the edge was sampled.
type EdgeEvent struct {
	Rising bool
	Tick   uint32
}

// EdgeSource delivers raw edges in tick order. NextEdge blocks until an edge
// is available or ctx is done.
type EdgeSource interface {
	NextEdge(ctx context.Context) (EdgeEvent, error)
}

// Calibrator measures the mains half-cycle and derives the phase delay bounds.
type Calibrator struct {
	timing Timing
	src    EdgeSource

	// Rejected counts period samples that fell outside the window.
	Rejected int
}

// NewCalibrator creates a calibrator reading edges from src.
func NewCalibrator(timing Timing, src EdgeSource) *Calibrator {
	return &Calibrator{timing: timing, src: src}
}

// Run blocks until enough valid periods have been measured. There is no
// retry limit: without a line signal it waits until ctx is cancelled.
func (c *Calibrator) Run(ctx context.Context) (CalibrationResult, error) {
	// Discard a possibly partial initial cycle: low->high->low, then the next
	// rising edge is the reference.
	if _, err := c.waitFor(ctx, true); err != nil {
		return CalibrationResult{}, err
	}
	if _, err := c.waitFor(ctx, false); err != nil {
		return CalibrationResult{}, err
	}
	ref, err := c.waitFor(ctx, true)
	if err != nil {
		return CalibrationResult{}, err
	}

	sum, n := 0, 0
	for n < c.timing.Samples {
		ev, err := c.waitFor(ctx, true)
		if err != nil {
			return CalibrationResult{}, err
		}
		period := int(ev.Tick - ref.Tick)
		ref = ev
		if period < c.timing.WindowMin || period > c.timing.WindowMax {
			c.Rejected++
			continue
		}
		sum += period
		n++
	}

	return Bounds(sum/n, c.timing), nil
}

func (c *Calibrator) waitFor(ctx context.Context, rising bool) (EdgeEvent, error) {
	for {
		ev, err := c.src.NextEdge(ctx)
		if err != nil {
			return EdgeEvent{}, err
		}
		if ev.Rising == rising {
			return ev, nil
		}
	}
}

// Bounds derives the phase delay bounds from an average half-cycle length.
// Both bounds are clamped to their safety ranges whatever the input.
func Bounds(avgPeriod int, t Timing) CalibrationResult {
	maxDelay := clamp(avgPeriod-t.Margin, t.MaxDelayMin, t.MaxDelayMax)
	minDelay := clamp(avgPeriod*t.MinBase/t.NominalPeriod-1, t.MinDelayMin, t.MinDelayMax)
	return CalibrationResult{
		MinDelay:  minDelay,
		MaxDelay:  maxDelay,
		AvgPeriod: avgPeriod,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
