package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/triac-dimmer/internal/config"
	"github.com/sweeney/triac-dimmer/internal/dim"
	"github.com/sweeney/triac-dimmer/internal/engine"
	"github.com/sweeney/triac-dimmer/internal/gpio"
	"github.com/sweeney/triac-dimmer/internal/logic"
	"github.com/sweeney/triac-dimmer/internal/ticker"
)

var calibrateTimeout time.Duration

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the mains half-cycle, print the delay bounds and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return calibrateOnce(cmd.OutOrStdout(), conf, calibrateTimeout)
	},
}

var printStateCmd = &cobra.Command{
	Use:   "print-state",
	Short: "Print the zero-cross input level and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pins, err := gpio.Open(conf.Pins.Driver, conf.PinConfig())
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer pins.Close()
		return printState(cmd.OutOrStdout(), pins)
	},
}

var (
	simHz     float64
	simCycles int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the dimmer against a synthetic mains waveform and trace each half-cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		percent := 50
		if cmd.Flags().Changed("brightness") {
			percent = conf.Dimmer.InitialPercent
		}
		res, err := simulate(conf.LogicTiming(), simHz, percent, simCycles)
		if err != nil {
			return err
		}
		printSimulation(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().DurationVar(&calibrateTimeout, "timeout", 10*time.Second, "Give up if no valid mains signal is seen")
	simulateCmd.Flags().Float64Var(&simHz, "hz", 60, "Mains frequency")
	simulateCmd.Flags().IntVar(&simCycles, "cycles", 10, "Half-cycles to trace")
}

func printState(w io.Writer, pins gpio.Pins) error {
	level, err := pins.ReadInput()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(w, "zero-cross: %s\n", levelString(level))
	return nil
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func calibrateOnce(w io.Writer, conf *config.Config, timeout time.Duration) error {
	pins, err := gpio.Open(conf.Pins.Driver, conf.PinConfig())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eng := engine.New(pins, conf.LogicTiming())
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		ticker.New(conf.TickPeriod()).Run(ctx, eng.HandleTick)
	}()

	res, err := eng.Calibrate(ctx)
	cancel()
	<-tickDone
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no valid zero-cross signal within %v", timeout)
	}
	if err != nil {
		return err
	}
	printBounds(w, res, eng.Timing())
	return nil
}

func printBounds(w io.Writer, res logic.CalibrationResult, timing logic.Timing) {
	fmt.Fprintf(w, "half-cycle: %d ticks (%v)\n", res.AvgPeriod, time.Duration(res.AvgPeriod)*timing.Tick)
	fmt.Fprintf(w, "min delay:  %d ticks (%v)\n", res.MinDelay, time.Duration(res.MinDelay)*timing.Tick)
	fmt.Fprintf(w, "max delay:  %d ticks (%v)\n", res.MaxDelay, time.Duration(res.MaxDelay)*timing.Tick)
}

// halfCycle is one traced half-cycle of a simulation.
type halfCycle struct {
	Fired  bool
	FireAt int // ticks from the accepted crossing to the gate pulse
	Width  int // gate pulse width in ticks
}

type simulation struct {
	Timing    logic.Timing
	Period    int // synthetic half-cycle in ticks
	Percent   int
	DimTarget int
	Bounds    logic.CalibrationResult
	Cycles    []halfCycle
	Stats     engine.Stats
}

// simulate drives an engine over fake pins with a square zero-cross signal
// at hz, calibrates it, applies percent and traces cycles half-cycles.
func simulate(timing logic.Timing, hz float64, percent, cycles int) (simulation, error) {
	if hz <= 0 {
		return simulation{}, fmt.Errorf("invalid frequency %v", hz)
	}
	if cycles <= 0 {
		return simulation{}, fmt.Errorf("invalid cycle count %d", cycles)
	}
	period := int(math.Round(float64(time.Second) / (2 * hz) / float64(timing.Tick)))
	if period < 3 {
		return simulation{}, fmt.Errorf("%v Hz is too fast for a %v tick", hz, timing.Tick)
	}

	pins := gpio.NewFakePins(nil)
	pins.Level = func(n int) bool { return n%period < period/3 }
	eng := engine.New(pins, timing)

	bounds, err := simulateCalibration(eng, period)
	if err != nil {
		return simulation{}, fmt.Errorf("%v Hz: %w", hz, err)
	}

	mapper := dim.NewMapper(bounds, timing.SafetyTimeout)
	eng.SetDimTarget(mapper.FromPercent(percent))

	sim := simulation{
		Timing:    timing,
		Period:    period,
		Percent:   percent,
		DimTarget: eng.DimTarget(),
		Bounds:    bounds,
	}

	heartbeat := pins.Output(gpio.LineHeartbeat)
	gate := pins.Output(gpio.LineGate)
	var cur *halfCycle
	start := 0
	for i := 0; i < (cycles+2)*period; i++ {
		eng.HandleTick()

		if hb := pins.Output(gpio.LineHeartbeat); hb != heartbeat {
			heartbeat = hb
			if cur != nil {
				sim.Cycles = append(sim.Cycles, *cur)
				if len(sim.Cycles) == cycles {
					break
				}
			}
			cur = &halfCycle{}
			start = i
		}
		g := pins.Output(gpio.LineGate)
		if cur != nil && g {
			if !gate {
				cur.Fired = true
				cur.FireAt = i - start
			}
			cur.Width++
		}
		gate = g
	}
	sim.Stats = eng.Stats()
	return sim, nil
}

// simulateCalibration ticks the engine until its calibration completes.
func simulateCalibration(eng *engine.Engine, period int) (logic.CalibrationResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan calibration, 1)
	go func() {
		res, err := eng.Calibrate(ctx)
		done <- calibration{bounds: res, err: err}
	}()

	// Short bursts keep the edge queue from overflowing while the
	// calibrator catches up.
	const burst = 16
	maxTicks := period * 4 * (eng.Timing().Samples + 4)
	for i := 0; i < maxTicks; i += burst {
		for j := 0; j < burst; j++ {
			eng.HandleTick()
		}
		select {
		case c := <-done:
			return c.bounds, c.err
		default:
		}
	}

	select {
	case c := <-done:
		return c.bounds, c.err
	case <-time.After(time.Second):
		cancel()
		<-done
		return logic.CalibrationResult{}, errors.New("half-cycle outside the calibration window")
	}
}

func printSimulation(w io.Writer, sim simulation) {
	bold := color.New(color.Bold)
	fire := color.New(color.FgGreen)
	idle := color.New(color.FgYellow)
	faint := color.New(color.FgHiBlack)

	bold.Fprintf(w, "calibrated: half-cycle %d ticks, delay bounds [%d, %d]\n",
		sim.Bounds.AvgPeriod, sim.Bounds.MinDelay, sim.Bounds.MaxDelay)
	bold.Fprintf(w, "brightness %d%% -> dim target %d ticks\n", sim.Percent, sim.DimTarget)

	const barWidth = 40
	for i, hc := range sim.Cycles {
		if !hc.Fired {
			idle.Fprintf(w, "%3d  no fire\n", i)
			continue
		}
		var bar strings.Builder
		for j := 0; j < barWidth; j++ {
			if j*sim.Period/barWidth >= hc.FireAt {
				bar.WriteByte('#')
			} else {
				bar.WriteByte('.')
			}
		}
		angle := 180 * float64(hc.FireAt) / float64(sim.Period)
		fire.Fprintf(w, "%3d  fire +%-4d %8v %6.1f°  width %d  ", i, hc.FireAt, time.Duration(hc.FireAt)*sim.Timing.Tick, angle, hc.Width)
		faint.Fprintln(w, bar.String())
	}
	fmt.Fprintf(w, "crossings=%d fires=%d timeouts=%d\n", sim.Stats.Crossings, sim.Stats.Fires, sim.Stats.Timeouts)
}
