package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/triac-dimmer/internal/config"
	"github.com/sweeney/triac-dimmer/internal/dim"
	"github.com/sweeney/triac-dimmer/internal/engine"
	"github.com/sweeney/triac-dimmer/internal/gpio"
	"github.com/sweeney/triac-dimmer/internal/logic"
	"github.com/sweeney/triac-dimmer/internal/mqtt"
	"github.com/sweeney/triac-dimmer/internal/status"
	"github.com/sweeney/triac-dimmer/internal/ticker"
	"github.com/sweeney/triac-dimmer/internal/web"
)

// commandQueue bounds brightness commands waiting for the main loop.
const commandQueue = 8

// statusRefresh is how often the tracker picks up the engine counters.
const statusRefresh = time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dimmer daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runDaemon(conf)
	},
}

func runDaemon(conf *config.Config) error {
	timing := conf.LogicTiming()

	pins, err := gpio.Open(conf.Pins.Driver, conf.PinConfig())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     conf.MQTT.Broker,
		ClientID:   conf.MQTT.ClientID,
		Prefix:     conf.MQTT.TopicPrefix,
		OutboxSize: conf.MQTT.OutboxSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	topics := mqtt.NewTopics(conf.MQTT.TopicPrefix)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickUs:        conf.TickPeriod().Microseconds(),
		MinZCPeriod:   timing.MinZCPeriod,
		ZCOffset:      timing.ZCOffset,
		PulseWidth:    timing.TriggerPulseWidth,
		SafetyTimeout: timing.SafetyTimeout,
		HeartbeatMs:   conf.MQTT.Heartbeat.Milliseconds(),
		Driver:        conf.Pins.Driver,
		Broker:        conf.MQTT.Broker,
		HTTPAddr:      conf.HTTP.Addr,
		WSBroker:      resolveWSBroker(conf.MQTT.WSBroker, conf.MQTT.Broker),
		StateTopic:    topics.State,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	eng := engine.New(pins, timing)
	commands := make(chan dim.Command, commandQueue)

	if err := client.Subscribe(mqttCommands(commands)); err != nil {
		log.Printf("mqtt: subscribe failed: %v", err)
	}

	if conf.HTTP.Addr != "" {
		srv := web.New(conf.HTTP.Addr, tracker, commands)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", conf.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tick := ticker.New(conf.TickPeriod())
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		if err := tick.Run(ctx, eng.HandleTick); err != nil && err != context.Canceled {
			log.Printf("ticker stopped: %v", err)
		}
	}()

	calibrated := make(chan calibration, 1)
	go func() {
		res, err := eng.Calibrate(ctx)
		calibrated <- calibration{bounds: res, err: err}
	}()

	log.Printf("started: tick=%v driver=%s broker=%s heartbeat=%v, calibrating",
		conf.TickPeriod(), conf.Pins.Driver, conf.MQTT.Broker, conf.MQTT.Heartbeat.Duration)

	refresh := time.NewTicker(statusRefresh)
	defer refresh.Stop()

	var heartbeat <-chan time.Time
	if conf.MQTT.Heartbeat.Duration > 0 {
		hb := time.NewTicker(conf.MQTT.Heartbeat.Duration)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		eng:        eng,
		publisher:  client,
		mqttStatus: client,
		tracker:    tracker,
		now:        time.Now,
		percent:    conf.Dimmer.InitialPercent,
	}
	err = runLoop(d, calibrated, commands, refresh.C, heartbeat, sigCh)

	// Stop ticking before the deferred Close releases the lines.
	cancel()
	<-tickDone
	if ticks := tick.CatchUps(); ticks > 0 {
		log.Printf("ticker: %d late ticks caught up", ticks)
	}
	return err
}

// mqttCommands returns the handler that queues commands from the set topic.
// It runs on a paho goroutine and never blocks.
func mqttCommands(commands chan<- dim.Command) mqtt.CommandHandler {
	return func(payload string) {
		p, err := dim.ParseCommand(payload)
		if err != nil {
			log.Printf("mqtt: ignoring command: %v", err)
			return
		}
		select {
		case commands <- dim.Command{Percent: p, Source: "mqtt"}:
		default:
			log.Printf("mqtt: command queue full, dropping %d%%", p)
		}
	}
}

type calibration struct {
	bounds logic.CalibrationResult
	err    error
}

// daemon is the state owned by the main loop.
type daemon struct {
	eng        *engine.Engine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	now        func() time.Time

	percent int         // last commanded brightness
	mapper  *dim.Mapper // nil until calibrated
}

func runLoop(d *daemon, calibrated <-chan calibration, commands <-chan dim.Command, refresh, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			d.eng.SetDimTarget(d.eng.Timing().SafetyTimeout)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.publishSystem("SHUTDOWN", signalName, true)
			return nil

		case c := <-calibrated:
			if c.err != nil {
				return fmt.Errorf("calibrate: %w", c.err)
			}
			m := dim.NewMapper(c.bounds, d.eng.Timing().SafetyTimeout)
			d.mapper = &m
			d.tracker.SetCalibration(c.bounds)
			log.Printf("calibrated: half-cycle=%d min_delay=%d max_delay=%d",
				c.bounds.AvgPeriod, c.bounds.MinDelay, c.bounds.MaxDelay)
			d.apply(d.percent, "startup")
			d.publishSystem("STARTUP", "", true)

		case cmd := <-commands:
			if d.mapper == nil {
				log.Printf("command %d%% from %s held until calibrated", cmd.Percent, cmd.Source)
				d.percent = cmd.Percent
				continue
			}
			d.apply(cmd.Percent, cmd.Source)

		case <-refresh:
			d.refreshStatus()

		case <-heartbeat:
			d.refreshStatus()
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			stats := d.eng.Stats()
			log.Printf("heartbeat: ticks=%d crossings=%d fires=%d timeouts=%d faults=%d read_errors=%d write_errors=%d dropped_edges=%d",
				stats.Ticks, stats.Crossings, stats.Fires, stats.Timeouts, stats.Faults,
				stats.ReadErrors, stats.WriteErrors, stats.DroppedEdges)
			d.publishSystem("HEARTBEAT", "", false)
		}
	}
}

// apply maps percent onto a dim target and publishes the new state.
func (d *daemon) apply(percent int, source string) {
	d.percent = percent
	d.eng.SetDimTarget(d.mapper.FromPercent(percent))
	target := d.eng.DimTarget()
	d.tracker.SetBrightness(percent, target)
	log.Printf("brightness: %d%% dim_target=%d source=%s", percent, target, source)

	event := mqtt.StateEvent{
		Timestamp: d.now(),
		Percent:   percent,
		DimTarget: target,
		Source:    source,
	}
	if err := d.publisher.PublishState(event); err != nil {
		log.Printf("state publish error: %v", err)
	}
}

func (d *daemon) refreshStatus() {
	d.tracker.SetStats(d.eng.Stats())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(name, reason string, retained bool) {
	d.refreshStatus()
	snap := d.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      name,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, name, reason),
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
