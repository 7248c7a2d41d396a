package episode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/aiai-go/neat"
	"github.com/baldhumanity/aiai-go/stats"
)

// scriptedEvaluator returns fitness[key] and logs the evaluation order.
type scriptedEvaluator struct {
	fitness map[int]float64
	fail    map[int]bool
	order   []int
	log     *[]string
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, g *neat.Genome, gen int) (Result, error) {
	e.order = append(e.order, g.Key)
	if e.log != nil {
		*e.log = append(*e.log, "eval")
	}
	if e.fail[g.Key] {
		return Result{}, errors.New("emulator crashed")
	}
	f := e.fitness[g.Key]
	g.SetFitness(f)
	return Result{GenomeKey: g.Key, Generation: gen, Fitness: f}, nil
}

type memorySink struct {
	records []stats.Record
	log     *[]string
}

func (s *memorySink) Append(_ context.Context, r stats.Record) error {
	s.records = append(s.records, r)
	if s.log != nil {
		*s.log = append(*s.log, "stats")
	}
	return nil
}
func (s *memorySink) Close() error { return nil }

type fixedHistory struct{ mean, stdev []float64 }

func (h *fixedHistory) FitnessMean() []float64  { return h.mean }
func (h *fixedHistory) FitnessStdev() []float64 { return h.stdev }

func genomes(keys ...int) map[int]*neat.Genome {
	out := make(map[int]*neat.Genome, len(keys))
	for _, k := range keys {
		out[k] = testGenome(k)
	}
	return out
}

func TestCoordinatorEvaluatesInKeyOrder(t *testing.T) {
	eval := &scriptedEvaluator{fitness: map[int]float64{3: 10, 1: -70, 2: 42}}
	gen := 0
	c := NewCoordinator(eval, CoordinatorOptions{Generation: func() int { return gen }})

	require.NoError(t, c.EvalGenomes(context.Background(), genomes(3, 1, 2)))
	assert.Equal(t, []int{1, 2, 3}, eval.order)
	best, ok := c.Best(0)
	require.True(t, ok)
	assert.Equal(t, 42.0, best)
}

func TestCoordinatorBestStartsAtFloor(t *testing.T) {
	eval := &scriptedEvaluator{fitness: map[int]float64{1: -80, 2: -60}}
	c := NewCoordinator(eval, CoordinatorOptions{})
	require.NoError(t, c.EvalGenomes(context.Background(), genomes(1, 2)))
	best, _ := c.Best(0)
	assert.Equal(t, InitialBest, best)
}

func TestCoordinatorWritesPreviousGenerationFirst(t *testing.T) {
	var events []string
	eval := &scriptedEvaluator{fitness: map[int]float64{1: 5, 2: 9}, log: &events}
	sink := &memorySink{log: &events}
	history := &fixedHistory{}
	gen := 0
	c := NewCoordinator(eval, CoordinatorOptions{
		Generation: func() int { return gen },
		History:    history,
		Sink:       sink,
		RunID:      "run-1",
	})
	ctx := context.Background()

	require.NoError(t, c.EvalGenomes(ctx, genomes(1, 2)))
	assert.Empty(t, sink.records, "nothing to write before the first generation")

	history.mean, history.stdev = []float64{7}, []float64{2}
	gen = 1
	eval.fitness = map[int]float64{1: 11, 2: 3}
	require.NoError(t, c.EvalGenomes(ctx, genomes(1, 2)))

	require.Len(t, sink.records, 1)
	assert.Equal(t, stats.Record{RunID: "run-1", Generation: 0, Best: 9, Mean: 7, Stdev: 2}, sink.records[0])
	assert.Equal(t, []string{"eval", "eval", "stats", "eval", "eval"}, events)

	history.mean, history.stdev = []float64{7, 7}, []float64{2, 4}
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Flush(ctx))
	require.Len(t, sink.records, 2)
	assert.Equal(t, 1, sink.records[1].Generation)
	assert.Equal(t, 11.0, sink.records[1].Best)
	assert.Equal(t, 4.0, sink.records[1].Stdev)
}

func TestCoordinatorSkipsStatsAfterRestore(t *testing.T) {
	sink := &memorySink{}
	eval := &scriptedEvaluator{fitness: map[int]float64{1: 5}}
	c := NewCoordinator(eval, CoordinatorOptions{
		Generation: func() int { return 8 },
		History:    &fixedHistory{},
		Sink:       sink,
	})
	require.NoError(t, c.EvalGenomes(context.Background(), genomes(1)))
	assert.Empty(t, sink.records)
}

func TestCoordinatorFailurePolicy(t *testing.T) {
	t.Run("abort", func(t *testing.T) {
		eval := &scriptedEvaluator{fitness: map[int]float64{1: 5, 3: 8}, fail: map[int]bool{2: true}}
		c := NewCoordinator(eval, CoordinatorOptions{})
		err := c.EvalGenomes(context.Background(), genomes(1, 2, 3))
		require.ErrorContains(t, err, "emulator crashed")
		assert.Equal(t, []int{1, 2}, eval.order)
	})

	t.Run("penalize", func(t *testing.T) {
		eval := &scriptedEvaluator{fitness: map[int]float64{1: -70, 3: -90}, fail: map[int]bool{2: true}}
		c := NewCoordinator(eval, CoordinatorOptions{PenalizeFailures: true, FailureFitness: -45})
		gs := genomes(1, 2, 3)
		require.NoError(t, c.EvalGenomes(context.Background(), gs))
		assert.Equal(t, []int{1, 2, 3}, eval.order)
		assert.True(t, gs[2].Evaluated)
		assert.Equal(t, -45.0, gs[2].Fitness)
		best, _ := c.Best(0)
		assert.Equal(t, -45.0, best)
	})
}

func TestCoordinatorAsFitnessFunc(t *testing.T) {
	eval := &scriptedEvaluator{fitness: map[int]float64{1: 1}}
	c := NewCoordinator(eval, CoordinatorOptions{})
	var fn neat.FitnessFunc = c.FitnessFunc(context.Background())
	require.NoError(t, fn(genomes(1)))
	_, ok := c.Best(0)
	assert.True(t, ok)
}
