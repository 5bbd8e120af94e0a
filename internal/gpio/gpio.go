// Package gpio provides the dimmer's pin capabilities with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Line identifies an output line.
type Line int

const (
	LineGate      Line = iota // triac opto-driver
	LineHeartbeat             // toggled once per accepted zero crossing
)

func (l Line) String() string {
	switch l {
	case LineGate:
		return "gate"
	case LineHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Pins reads the zero-cross input and drives the output lines.
type Pins interface {
	// ReadInput returns the zero-cross line level (true = high).
	ReadInput() (bool, error)

	// SetOutput drives an output line.
	SetOutput(line Line, level bool) error

	// Close drives the outputs low and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinZeroCross = 17
	DefaultPinGate      = 27
	DefaultPinHeartbeat = 22
)

// PinConfig selects the pins used by a real backend.
type PinConfig struct {
	Chip      string // gpiocdev chip name, e.g. "gpiochip0"
	ZeroCross int
	Gate      int
	Heartbeat int
}

// DefaultPinConfig returns the default wiring.
func DefaultPinConfig() PinConfig {
	return PinConfig{
		Chip:      "gpiochip0",
		ZeroCross: DefaultPinZeroCross,
		Gate:      DefaultPinGate,
		Heartbeat: DefaultPinHeartbeat,
	}
}

// Drivers accepted by Open.
const (
	DriverGPIOCDev = "gpiocdev"
	DriverPeriph   = "periph"
)

// Open returns the real backend for the named driver.
func Open(driver string, cfg PinConfig) (Pins, error) {
	switch driver {
	case "", DriverGPIOCDev:
		p, err := NewRealPins(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverPeriph:
		p, err := NewPeriphPins(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("gpio: unknown driver %q", driver)
}
