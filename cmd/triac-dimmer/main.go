// Command triac-dimmer drives a triac phase-cut dimmer from a zero-cross
// detector and takes brightness commands over MQTT and HTTP.
package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sweeney/triac-dimmer/internal/config"
)

var (
	configPath     string
	brokerFlag     string
	httpFlag       string
	brightnessFlag int
)

var rootCmd = &cobra.Command{
	Use:   "triac-dimmer",
	Short: "Phase-cut triac dimmer daemon",
	Long: "triac-dimmer calibrates against the mains zero-cross signal, then fires the triac gate\n" +
		"at a phase delay set over MQTT or HTTP.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "TOML config file (embedded defaults when empty)")
	pf.StringVar(&brokerFlag, "broker", "", "MQTT broker address (overrides config)")
	pf.StringVar(&httpFlag, "http", "", "HTTP status address, empty to disable (overrides config)")
	pf.IntVar(&brightnessFlag, "brightness", 0, "Brightness in percent applied after calibration (overrides config)")

	rootCmd.AddCommand(runCmd, calibrateCmd, simulateCmd, printStateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("broker") {
		conf.MQTT.Broker = brokerFlag
	}
	if flags.Changed("http") {
		conf.HTTP.Addr = httpFlag
	}
	if flags.Changed("brightness") {
		conf.Dimmer.InitialPercent = brightnessFlag
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return conf, nil
}
