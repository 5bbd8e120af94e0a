package logic

// maxGuard is the saturation value of the noise guard timer.
const maxGuard = ^uint16(0)

// EdgeDetector reports transitions of a sampled binary line.
type EdgeDetector struct {
	prev bool
}

// NewEdgeDetector creates a detector whose previous sample is the line's idle
// level, so no edge is reported before a genuine one.
func NewEdgeDetector(idle bool) EdgeDetector {
	return EdgeDetector{prev: idle}
}

// Sample records the current level and returns whether it rose or fell
// since the previous sample.
func (d *EdgeDetector) Sample(level bool) (rising, falling bool) {
	rising = level && !d.prev
	falling = !level && d.prev
	d.prev = level
	return rising, falling
}

// NoiseGate rejects edges that follow an accepted edge too closely.
// Triac switching transients look like zero crossings but arrive far more
// often than real ones.
type NoiseGate struct {
	min   uint16
	guard uint16
}

// NewNoiseGate creates a gate that accepts an edge only when more than
// minPeriod ticks have elapsed since the last accepted one. The guard starts
// saturated so the first genuine edge is accepted.
func NewNoiseGate(minPeriod int) NoiseGate {
	return NoiseGate{min: uint16(minPeriod), guard: maxGuard}
}

// Accept advances the gate by one tick and reports whether a rising edge
// seen on this tick is a zero crossing.
func (g *NoiseGate) Accept(rising bool) bool {
	if rising && g.guard > g.min {
		g.guard = 0
		return true
	}
	if g.guard < maxGuard {
		g.guard++
	}
	return false
}

// Since returns the ticks since the last accepted edge, saturated.
func (g *NoiseGate) Since() uint16 {
	return g.guard
}
