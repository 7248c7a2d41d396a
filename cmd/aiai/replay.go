package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/aiai-go/neat"
)

var replayCmd = &cobra.Command{
	Use:   "replay <genome-file>",
	Short: "Play one episode with a saved genome",
	Long: `Load a genome written by 'aiai run' and play a single episode with it.

Set frames_dir in [Capture] to replay recorded screenshots instead of the
live screen, and leave [Actuator] pipe empty to only log the stick commands.

Examples:
  aiai replay winner.gob
  aiai replay winner.gob --neat-config config-feedforward`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&flagNeatConfig, "neat-config", "", "NEAT configuration file (overrides [Run] neat_config)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("neat-config") {
		cfg.Run.NeatConfig = flagNeatConfig
	}
	logger, err := newLogger(flagLogging)
	if err != nil {
		return err
	}
	neatCfg, err := neat.LoadConfig(cfg.Run.NeatConfig)
	if err != nil {
		return err
	}
	genome, err := neat.LoadGenome(args[0], &neatCfg.Genome)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, neatCfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := sess.runner.Evaluate(ctx, genome, 0)
	if err != nil {
		return err
	}
	fmt.Printf("genome %d: %s after %d ticks (%s), fitness %.3f\n",
		res.GenomeKey, res.Terminal, res.Ticks, res.Elapsed.Round(10*time.Millisecond), res.Fitness)
	return nil
}
