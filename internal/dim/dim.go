// Package dim maps brightness commands onto phase delay targets.
// The mapping is linear in delay ticks; no perceptual correction is applied.
package dim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/triac-dimmer/internal/logic"
)

// Mapper converts a brightness percentage into a dim target.
type Mapper struct {
	Bounds logic.CalibrationResult
	Off    int // dim target meaning OFF
}

// NewMapper creates a mapper for the calibrated bounds.
func NewMapper(bounds logic.CalibrationResult, off int) Mapper {
	return Mapper{Bounds: bounds, Off: off}
}

// FromPercent returns the dim target for a brightness in percent.
// 0 is OFF, 100 fires at the minimum delay, 1 at the maximum delay.
func (m Mapper) FromPercent(percent int) int {
	if percent <= 0 {
		return m.Off
	}
	if percent > 100 {
		percent = 100
	}
	return Map(percent, 1, 100, m.Bounds.MaxDelay, m.Bounds.MinDelay)
}

// Map linearly re-maps x from [inMin, inMax] to [outMin, outMax] with
// integer arithmetic. The output range may be inverted.
func Map(x, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// ParseCommand parses a brightness command: "ON", "OFF" or an integer
// percentage between 0 and 100.
func ParseCommand(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "ON":
		return 100, nil
	case "OFF":
		return 0, nil
	}
	p, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid brightness %q", s)
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("brightness %d out of range (0..100)", p)
	}
	return p, nil
}

// Command is a brightness change requested by one of the control surfaces.
type Command struct {
	Percent int
	Source  string // "mqtt", "http"
}
