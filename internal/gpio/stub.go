//go:build !linux

package gpio

import "errors"

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(cfg PinConfig) (*RealPins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadInput is not implemented on non-Linux platforms.
func (p *RealPins) ReadInput() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// SetOutput is not implemented on non-Linux platforms.
func (p *RealPins) SetOutput(line Line, level bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPins) Close() error {
	return nil
}
