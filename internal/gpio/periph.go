package gpio

import (
	"errors"
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPins drives hardware through periph.io, for boards without a usable
// GPIO character device.
type PeriphPins struct {
	zeroCross pgpio.PinIO
	gate      pgpio.PinIO
	heartbeat pgpio.PinIO
}

// NewPeriphPins initializes periph.io and resolves pins by their GPIO<n> name.
// Chip in cfg is ignored.
func NewPeriphPins(cfg PinConfig) (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	resolve := func(n int) (pgpio.PinIO, error) {
		name := fmt.Sprintf("GPIO%d", n)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("pin %d (%s) not found in hardware", n, name)
		}
		return p, nil
	}

	zc, err := resolve(cfg.ZeroCross)
	if err != nil {
		return nil, err
	}
	if err := zc.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("set zero-cross pin %d to input: %w", cfg.ZeroCross, err)
	}

	gate, err := resolve(cfg.Gate)
	if err != nil {
		return nil, err
	}
	if err := gate.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("set gate pin %d to output: %w", cfg.Gate, err)
	}

	hb, err := resolve(cfg.Heartbeat)
	if err != nil {
		return nil, err
	}
	if err := hb.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("set heartbeat pin %d to output: %w", cfg.Heartbeat, err)
	}

	return &PeriphPins{zeroCross: zc, gate: gate, heartbeat: hb}, nil
}

// ReadInput returns the zero-cross line level.
func (p *PeriphPins) ReadInput() (bool, error) {
	return p.zeroCross.Read() == pgpio.High, nil
}

// SetOutput drives an output line.
func (p *PeriphPins) SetOutput(line Line, level bool) error {
	var pin pgpio.PinIO
	switch line {
	case LineGate:
		pin = p.gate
	case LineHeartbeat:
		pin = p.heartbeat
	default:
		return fmt.Errorf("set %s: line not available", line)
	}
	if err := pin.Out(pgpio.Level(level)); err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}
	return nil
}

// Close drives both outputs low and releases them.
func (p *PeriphPins) Close() error {
	var errs []error
	for _, pin := range []pgpio.PinIO{p.gate, p.heartbeat} {
		if err := pin.Out(pgpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("drive %s low: %w", pin.Name(), err))
		}
		if err := pin.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", pin.Name(), err))
		}
	}
	return errors.Join(errs...)
}
