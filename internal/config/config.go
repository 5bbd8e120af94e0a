// Package config loads the daemon configuration from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/triac-dimmer/internal/gpio"
	"github.com/sweeney/triac-dimmer/internal/logic"
)

//go:embed dimmer.toml
var defaultConfigData []byte

// Default returns the embedded default configuration file.
func Default() []byte {
	return defaultConfigData
}

// Duration is a time.Duration written as a string, e.g. "15m".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the entire TOML configuration structure.
type Config struct {
	Timing      Timing      `toml:"timing"`
	Calibration Calibration `toml:"calibration"`
	Pins        Pins        `toml:"pins"`
	MQTT        MQTT        `toml:"mqtt"`
	HTTP        HTTP        `toml:"http"`
	Dimmer      Dimmer      `toml:"dimmer"`
}

// Timing holds the phase control constants in reference ticks.
type Timing struct {
	TickUs            int `toml:"tick_us"`
	MinZCPeriod       int `toml:"min_zc_period"`
	ZCOffset          int `toml:"zc_offset"`
	TriggerPulseWidth int `toml:"trigger_pulse_width"`
	SafetyTimeout     int `toml:"safety_timeout"`
}

// Calibration holds the calibration constants in reference ticks.
type Calibration struct {
	Samples       int `toml:"samples"`
	WindowMin     int `toml:"window_min"`
	WindowMax     int `toml:"window_max"`
	Margin        int `toml:"margin"`
	NominalPeriod int `toml:"nominal_period"`
	MinBase       int `toml:"min_base"`
	MaxDelayMin   int `toml:"max_delay_min"`
	MaxDelayMax   int `toml:"max_delay_max"`
	MinDelayMin   int `toml:"min_delay_min"`
	MinDelayMax   int `toml:"min_delay_max"`
}

// Pins selects the GPIO driver and lines.
type Pins struct {
	Driver    string `toml:"driver"`
	Chip      string `toml:"chip"`
	ZeroCross int    `toml:"zero_cross"`
	Gate      int    `toml:"gate"`
	Heartbeat int    `toml:"heartbeat"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker      string   `toml:"broker"`
	ClientID    string   `toml:"client_id"`
	TopicPrefix string   `toml:"topic_prefix"`
	Heartbeat   Duration `toml:"heartbeat"`
	OutboxSize  int      `toml:"outbox_size"`
	WSBroker    string   `toml:"ws_broker"`
}

// HTTP configures the status server. An empty address disables it.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Dimmer holds the output defaults.
type Dimmer struct {
	InitialPercent int `toml:"initial_percent"`
}

// Load returns the embedded defaults overlaid with the file at path.
// An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(string(defaultConfigData), &conf); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &conf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks the configuration, including the derived tick constants.
func (c *Config) Validate() error {
	var errs []error
	if c.Timing.TickUs <= 0 {
		errs = append(errs, fmt.Errorf("timing.tick_us %d must be positive", c.Timing.TickUs))
	} else if err := c.LogicTiming().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Pins.Driver {
	case gpio.DriverGPIOCDev, gpio.DriverPeriph:
	default:
		errs = append(errs, fmt.Errorf("pins.driver %q unknown (want %q or %q)",
			c.Pins.Driver, gpio.DriverGPIOCDev, gpio.DriverPeriph))
	}
	if c.MQTT.Heartbeat.Duration < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat %v is negative", c.MQTT.Heartbeat.Duration))
	}
	if c.Dimmer.InitialPercent < 0 || c.Dimmer.InitialPercent > 100 {
		errs = append(errs, fmt.Errorf("dimmer.initial_percent %d out of range (0..100)", c.Dimmer.InitialPercent))
	}
	return errors.Join(errs...)
}

// TickPeriod returns the configured tick period.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Timing.TickUs) * time.Microsecond
}

// LogicTiming returns the core constants rescaled to the configured tick.
func (c *Config) LogicTiming() logic.Timing {
	t := logic.Timing{
		Tick:              logic.ReferenceTick,
		MinZCPeriod:       c.Timing.MinZCPeriod,
		ZCOffset:          c.Timing.ZCOffset,
		TriggerPulseWidth: c.Timing.TriggerPulseWidth,
		SafetyTimeout:     c.Timing.SafetyTimeout,
		Samples:           c.Calibration.Samples,
		WindowMin:         c.Calibration.WindowMin,
		WindowMax:         c.Calibration.WindowMax,
		Margin:            c.Calibration.Margin,
		NominalPeriod:     c.Calibration.NominalPeriod,
		MinBase:           c.Calibration.MinBase,
		MaxDelayMin:       c.Calibration.MaxDelayMin,
		MaxDelayMax:       c.Calibration.MaxDelayMax,
		MinDelayMin:       c.Calibration.MinDelayMin,
		MinDelayMax:       c.Calibration.MinDelayMax,
	}
	return t.ScaledTo(c.TickPeriod())
}

// PinConfig returns the GPIO wiring.
func (c *Config) PinConfig() gpio.PinConfig {
	return gpio.PinConfig{
		Chip:      c.Pins.Chip,
		ZeroCross: c.Pins.ZeroCross,
		Gate:      c.Pins.Gate,
		Heartbeat: c.Pins.Heartbeat,
	}
}
