package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/baldhumanity/aiai-go/episode"
	"github.com/baldhumanity/aiai-go/neat"
	"github.com/baldhumanity/aiai-go/stats"
)

var (
	flagNeatConfig  string
	flagStats       bool
	flagGenerations int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evolve controllers",
	Long: `Run NEAT generations against the live game.

If the history directory holds checkpoints, the newest one is restored and
evolution continues with the following generation. The winning genome is
written to the configured winner file when the run ends.

Examples:
  aiai run
  aiai run --neat-config config-feedforward --generations 20`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagNeatConfig, "neat-config", "", "NEAT configuration file (overrides [Run] neat_config)")
	runCmd.Flags().BoolVarP(&flagStats, "stats", "s", true, "Record per-generation statistics")
	runCmd.Flags().IntVar(&flagGenerations, "generations", 0, "Generations to run, 0 runs until the fitness threshold")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("neat-config") {
		cfg.Run.NeatConfig = flagNeatConfig
	}
	if cmd.Flags().Changed("stats") {
		cfg.Stats.Enabled = flagStats
	}
	if cmd.Flags().Changed("generations") {
		cfg.Run.Generations = flagGenerations
	}
	logger, err := newLogger(flagLogging)
	if err != nil {
		return err
	}

	pop, err := loadPopulation(cfg, logger)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, pop.Config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	statistics := neat.NewStatisticsReporter()
	checkpointer := neat.NewCheckpointer(cfg.Run.HistoryDir, cfg.Run.CheckpointPrefix, cfg.Run.CheckpointInterval, logger)
	pop.AddReporter(neat.NewStdOutReporter(logger, true))
	pop.AddReporter(statistics)
	pop.AddReporter(checkpointer)

	sink, runID, err := openSinks(cfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		logger.Info("recording statistics", "run", runID)
	}

	coord := episode.NewCoordinator(sess.runner, episode.CoordinatorOptions{
		Generation:       func() int { return pop.Generation },
		History:          statistics,
		Sink:             sink,
		RunID:            runID,
		PenalizeFailures: cfg.Run.PenalizeFailures,
		FailureFitness:   cfg.Run.FailureFitness,
		Logger:           logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	winner, runErr := pop.Run(coord.FitnessFunc(ctx), cfg.Run.Generations)
	if err := coord.Flush(context.WithoutCancel(ctx)); err != nil {
		logger.Error("could not record final statistics", "err", err)
	}
	if err := checkpointer.Err(); err != nil {
		logger.Error("some checkpoints were not saved", "err", err)
	}
	if winner != nil {
		if err := neat.SaveGenome(cfg.Run.Winner, winner); err != nil {
			return errors.Join(runErr, err)
		}
		logger.Info("saved best genome", "path", cfg.Run.Winner, "genome", winner.Key, "fitness", winner.Fitness)
	}
	return runErr
}

// loadPopulation restores the newest checkpoint in the history directory or
// starts a new population.
func loadPopulation(cfg *episode.Config, logger *log.Logger) (*neat.Population, error) {
	if err := os.MkdirAll(cfg.Run.HistoryDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create history directory: %w", err)
	}
	path, gen, err := neat.LatestCheckpoint(cfg.Run.HistoryDir, cfg.Run.CheckpointPrefix)
	switch {
	case err == nil:
		pop, err := neat.LoadCheckpoint(path, cfg.Run.NeatConfig)
		if err != nil {
			return nil, err
		}
		logger.Info("restoring checkpoint", "generation", gen, "next", pop.Generation)
		return pop, nil
	case errors.Is(err, fs.ErrNotExist):
		neatCfg, err := neat.LoadConfig(cfg.Run.NeatConfig)
		if err != nil {
			return nil, err
		}
		return neat.NewPopulation(neatCfg)
	default:
		return nil, err
	}
}

func openSinks(cfg *episode.Config) (stats.Sink, string, error) {
	if !cfg.Stats.Enabled {
		return nil, "", nil
	}
	runID := cfg.Stats.RunID
	if runID == "" {
		runID = stats.NewRunID()
	}
	var sinks []stats.Sink
	if cfg.Stats.CSV != "" {
		s, err := stats.OpenCSV(cfg.Stats.CSV)
		if err != nil {
			return nil, "", err
		}
		sinks = append(sinks, s)
	}
	if cfg.Stats.SQLite != "" {
		s, err := stats.OpenSQLite(cfg.Stats.SQLite)
		if err != nil {
			stats.Multi(sinks...).Close()
			return nil, "", err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, "", nil
	}
	return stats.Multi(sinks...), runID, nil
}
