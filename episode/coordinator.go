package episode

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/baldhumanity/aiai-go/neat"
	"github.com/baldhumanity/aiai-go/stats"
)

// Evaluator plays one episode for a genome.
type Evaluator interface {
	Evaluate(ctx context.Context, genome *neat.Genome, generation int) (Result, error)
}

// FitnessHistory supplies per-generation population statistics; it is
// satisfied by *neat.StatisticsReporter.
type FitnessHistory interface {
	FitnessMean() []float64
	FitnessStdev() []float64
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Generation returns the index of the generation being evaluated.
	Generation func() int
	History    FitnessHistory
	// Sink receives one record per finished generation; nil disables stats.
	Sink  stats.Sink
	RunID string
	// PenalizeFailures turns episode errors into FailureFitness instead of
	// aborting the run.
	PenalizeFailures bool
	FailureFitness   float64
	Logger           *log.Logger
}

// Coordinator evaluates whole generations, one genome at a time.
type Coordinator struct {
	eval    Evaluator
	opts    CoordinatorOptions
	best    map[int]float64
	written map[int]bool
	last    int
}

// InitialBest is the best fitness a generation starts from.
const InitialBest = -50.0

func NewCoordinator(eval Evaluator, opts CoordinatorOptions) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = discardLogger
	}
	return &Coordinator{
		eval:    eval,
		opts:    opts,
		best:    make(map[int]float64),
		written: make(map[int]bool),
		last:    -1,
	}
}

// FitnessFunc adapts EvalGenomes to neat.Population.Run.
func (c *Coordinator) FitnessFunc(ctx context.Context) neat.FitnessFunc {
	return func(genomes map[int]*neat.Genome) error {
		return c.EvalGenomes(ctx, genomes)
	}
}

// EvalGenomes writes the stats of the previous generation, then evaluates
// every genome in ascending key order and records the generation's best
// fitness.
func (c *Coordinator) EvalGenomes(ctx context.Context, genomes map[int]*neat.Genome) error {
	gen := c.generation()
	if err := c.writeStats(ctx, gen-1); err != nil {
		return err
	}

	keys := make([]int, 0, len(genomes))
	for k := range genomes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	best := InitialBest
	for _, k := range keys {
		g := genomes[k]
		res, err := c.eval.Evaluate(ctx, g, gen)
		if err != nil {
			if !c.opts.PenalizeFailures || ctx.Err() != nil {
				return fmt.Errorf("generation %d genome %d: %w", gen, k, err)
			}
			c.opts.Logger.Error("episode failed", "generation", gen, "genome", k, "err", err)
			g.SetFitness(c.opts.FailureFitness)
			res.Fitness = c.opts.FailureFitness
		}
		best = max(best, res.Fitness)
	}
	c.best[gen] = best
	c.last = gen
	c.opts.Logger.Info("generation evaluated", "generation", gen, "best", best)
	return nil
}

// Flush writes the stats of the last evaluated generation, which EvalGenomes
// only writes when the next generation starts.
func (c *Coordinator) Flush(ctx context.Context) error {
	if c.last < 0 {
		return nil
	}
	return c.writeStats(ctx, c.last)
}

// Best returns the best fitness recorded for a generation.
func (c *Coordinator) Best(generation int) (float64, bool) {
	v, ok := c.best[generation]
	return v, ok
}

func (c *Coordinator) generation() int {
	if c.opts.Generation == nil {
		return c.last + 1
	}
	return c.opts.Generation()
}

// writeStats appends the record of gen once the population statistics for
// it exist. After a restore the statistics start empty, so the generation
// before the restart is skipped.
func (c *Coordinator) writeStats(ctx context.Context, gen int) error {
	if c.opts.Sink == nil || c.opts.History == nil || c.written[gen] {
		return nil
	}
	best, ok := c.best[gen]
	if !ok {
		return nil
	}
	means, stdevs := c.opts.History.FitnessMean(), c.opts.History.FitnessStdev()
	if len(means) == 0 || len(stdevs) == 0 {
		return nil
	}
	rec := stats.Record{
		RunID:      c.opts.RunID,
		Generation: gen,
		Best:       best,
		Mean:       means[len(means)-1],
		Stdev:      stdevs[len(stdevs)-1],
	}
	if err := c.opts.Sink.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to record stats for generation %d: %w", gen, err)
	}
	c.written[gen] = true
	return nil
}
