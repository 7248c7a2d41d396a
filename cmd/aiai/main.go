// aiai evolves NEAT controllers for the monkey ball minigame by watching the
// emulator screen.
//
// Usage:
//
//	aiai run                 - Evolve, resuming from the newest checkpoint
//	aiai replay <genome>     - Play one episode with a saved genome
//	aiai stats [run-id]      - Show stored generation statistics
//
// Global flags:
//
//	--config <path>   - Run configuration (default: aiai.ini)
//	--logging <mode>  - full, partial or none (default: full)
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/baldhumanity/aiai-go/episode"
)

var (
	flagConfig  string
	flagLogging string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aiai",
	Short: "Evolve game controllers with NEAT",
	Long: `aiai trains neural network controllers for a rolling-ball minigame.

Every genome plays one episode in the emulator: the screen is captured,
scaled down and fed to the network, whose two outputs steer the stick.
Reaching the goal quickly scores highest; falling out, running out of time
or standing still is penalized.

Examples:
  aiai run --logging partial
  aiai run --generations 50 --stats=false
  aiai replay winner.gob
  aiai stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "aiai.ini", "Path to the run configuration")
	rootCmd.PersistentFlags().StringVarP(&flagLogging, "logging", "l", "full", "Logging: full, partial or none")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(statsCmd)
}

// newLogger maps the --logging modes onto log levels.
func newLogger(mode string) (*log.Logger, error) {
	switch mode {
	case "full", "partial":
		level := log.DebugLevel
		if mode == "partial" {
			level = log.InfoLevel
		}
		return log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "aiai",
			Level:           level,
		}), nil
	case "none":
		return log.New(io.Discard), nil
	}
	return nil, fmt.Errorf("invalid --logging %q: want full, partial or none", mode)
}

// loadConfig reads --config, falling back to the defaults when the default
// file does not exist.
func loadConfig(cmd *cobra.Command) (*episode.Config, error) {
	if _, err := os.Stat(flagConfig); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		return episode.DefaultConfig(), nil
	}
	return episode.LoadConfig(flagConfig)
}
