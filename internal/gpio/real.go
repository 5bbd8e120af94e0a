//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives actual hardware using the Linux GPIO character device.
type RealPins struct {
	chip      *gpiocdev.Chip
	zeroCross *gpiocdev.Line
	gate      *gpiocdev.Line
	heartbeat *gpiocdev.Line
}

// NewRealPins requests the zero-cross input and the two outputs.
// Outputs start low so the triac cannot fire before calibration.
func NewRealPins(cfg PinConfig) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}
	p := &RealPins{chip: chip}

	// Pull-down matches Pi boot defaults; the opto output drives the line high.
	p.zeroCross, err = chip.RequestLine(cfg.ZeroCross, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request zero-cross pin %d: %w", cfg.ZeroCross, err)
	}

	p.gate, err = chip.RequestLine(cfg.Gate, gpiocdev.AsOutput(0))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request gate pin %d: %w", cfg.Gate, err)
	}

	p.heartbeat, err = chip.RequestLine(cfg.Heartbeat, gpiocdev.AsOutput(0))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request heartbeat pin %d: %w", cfg.Heartbeat, err)
	}

	return p, nil
}

// ReadInput returns the zero-cross line level.
func (p *RealPins) ReadInput() (bool, error) {
	v, err := p.zeroCross.Value()
	if err != nil {
		return false, fmt.Errorf("read zero-cross pin: %w", err)
	}
	return v != 0, nil
}

// SetOutput drives an output line.
func (p *RealPins) SetOutput(line Line, level bool) error {
	l := p.line(line)
	if l == nil {
		return fmt.Errorf("set %s: line not available", line)
	}
	v := 0
	if level {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}
	return nil
}

func (p *RealPins) line(line Line) *gpiocdev.Line {
	switch line {
	case LineGate:
		return p.gate
	case LineHeartbeat:
		return p.heartbeat
	}
	return nil
}

// Close drives the outputs low, then reconfigures every line to input with
// pull-down (matching Pi boot defaults) before releasing it, so a stale high
// gate can never keep the triac conducting.
func (p *RealPins) Close() error {
	var errs []error

	for _, out := range []struct {
		name string
		line *gpiocdev.Line
	}{{"gate", p.gate}, {"heartbeat", p.heartbeat}} {
		if out.line == nil {
			continue
		}
		if err := out.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive %s low: %w", out.name, err))
		}
		if err := out.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", out.name, err))
		}
		if err := out.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", out.name, err))
		}
	}
	if p.zeroCross != nil {
		if err := p.zeroCross.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close zero-cross pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
