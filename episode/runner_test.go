package episode

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluate(t *testing.T, f *fixture) Result {
	t.Helper()
	r, err := NewRunner(f.rc)
	require.NoError(t, err)
	res, err := r.Evaluate(context.Background(), testGenome(7), 3)
	require.NoError(t, err)
	return res
}

func TestGoalFitnessDependsOnElapsedTime(t *testing.T) {
	tpl := testTemplates()
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{10 * time.Second, 92.5},
		{60 * time.Second, 30},
		{80 * time.Second, 5},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			f := newFixture([]image.Image{frameWith(tpl.Goal)}, nil)
			f.clock.step = tt.elapsed

			res := evaluate(t, f)
			assert.Equal(t, Goal, res.Terminal)
			assert.InDelta(t, tt.want, res.Fitness, 1e-9)
			assert.Equal(t, 1, res.Ticks)
		})
	}
}

func TestGoalOverridesRunningMax(t *testing.T) {
	tpl := testTemplates()
	f := newFixture(
		[]image.Image{frameWith(), frameWith(tpl.Goal)},
		[][]Detection{{box(50)}},
	)
	f.clock.step = 100 * time.Second

	res := evaluate(t, f)
	assert.Equal(t, Goal, res.Terminal)
	// 30 + 1.25*(60-100), not combined with the earlier 50
	assert.InDelta(t, -20.0, res.Fitness, 1e-9)
}

func TestTerminalPenalties(t *testing.T) {
	tpl := testTemplates()
	tests := []struct {
		name      string
		overlay   Template
		proximity float64
		terminal  Terminal
		want      float64
	}{
		{"time over", tpl.TimeOver, 40, TimeOver, 15},
		{"fall out", tpl.FallOut, 10, FallOut, -40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(
				[]image.Image{frameWith(), frameWith(tt.overlay)},
				[][]Detection{{box(tt.proximity)}},
			)
			res := evaluate(t, f)
			assert.Equal(t, tt.terminal, res.Terminal)
			assert.InDelta(t, tt.want, res.Fitness, 1e-9)
			assert.Equal(t, 2, res.Ticks)
		})
	}
}

func TestOverlayPriority(t *testing.T) {
	tpl := testTemplates()
	f := newFixture([]image.Image{frameWith(tpl.Goal, tpl.FallOut, tpl.TimeOver)}, nil)
	res := evaluate(t, f)
	assert.Equal(t, TimeOver, res.Terminal)

	f = newFixture([]image.Image{frameWith(tpl.Goal, tpl.FallOut)}, nil)
	res = evaluate(t, f)
	assert.Equal(t, FallOut, res.Terminal)
}

func TestPlateauStagnation(t *testing.T) {
	f := newFixture([]image.Image{frameWith()}, nil)
	res := evaluate(t, f)
	assert.Equal(t, Stagnated, res.Terminal)
	assert.Equal(t, 501, res.Ticks)
	assert.InDelta(t, -25.0, res.Fitness, 1e-9)
}

func TestZeroSpeedStagnation(t *testing.T) {
	tpl := testTemplates()
	f := newFixture([]image.Image{frameWith(tpl.ZeroSpeed)}, nil)
	res := evaluate(t, f)
	assert.Equal(t, Stagnated, res.Terminal)
	assert.Equal(t, 9, res.Ticks)
	assert.InDelta(t, -25.0, res.Fitness, 1e-9)
}

func TestProgressDelaysStagnation(t *testing.T) {
	// Steady improvement for three ticks resets the plateau counter each time.
	f := newFixture(
		[]image.Image{frameWith()},
		[][]Detection{{box(1)}, {box(2)}, {box(3)}, nil},
	)
	res := evaluate(t, f)
	assert.Equal(t, Stagnated, res.Terminal)
	assert.Equal(t, 3+501, res.Ticks)
	assert.InDelta(t, 3-25.0, res.Fitness, 1e-9)
}

func TestMaxTicksCeiling(t *testing.T) {
	f := newFixture([]image.Image{frameWith()}, nil)
	f.rc.Config.Episode.MaxTicks = 5
	res := evaluate(t, f)
	assert.Equal(t, Stagnated, res.Terminal)
	assert.Equal(t, 5, res.Ticks)
	assert.InDelta(t, -25.0, res.Fitness, 1e-9)
}

func TestEvaluateDrivesActuator(t *testing.T) {
	tpl := testTemplates()
	f := newFixture([]image.Image{frameWith(), frameWith(tpl.TimeOver)}, nil)
	g := testGenome(11)

	r, err := NewRunner(f.rc)
	require.NoError(t, err)
	res, err := r.Evaluate(context.Background(), g, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, f.actuator.resets)
	assert.Equal(t, []Command{{0.5, -0.25}, {0.5, -0.25}, Neutral}, f.actuator.commands)
	assert.True(t, g.Evaluated)
	assert.Equal(t, res.Fitness, g.Fitness)
	assert.Equal(t, 11, res.GenomeKey)
}

func TestNeutralCommandOnFailure(t *testing.T) {
	f := newFixture([]image.Image{frameWith()}, nil)
	f.frames.err = errCapture

	r, err := NewRunner(f.rc)
	require.NoError(t, err)
	_, err = r.Evaluate(context.Background(), testGenome(1), 0)
	require.ErrorIs(t, err, errCapture)
	assert.Equal(t, []Command{Neutral}, f.actuator.commands)
}

func TestWrongFrameSizeIsFatal(t *testing.T) {
	f := newFixture([]image.Image{image.NewRGBA(image.Rect(0, 0, 10, 10))}, nil)
	r, err := NewRunner(f.rc)
	require.NoError(t, err)
	_, err = r.Evaluate(context.Background(), testGenome(1), 0)
	require.ErrorIs(t, err, ErrFrameSize)
}

func TestEvaluateHonorsCancellation(t *testing.T) {
	f := newFixture([]image.Image{frameWith()}, nil)
	r, err := NewRunner(f.rc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Evaluate(ctx, testGenome(1), 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Command{Neutral}, f.actuator.commands)
}

func TestEvaluateIsRepeatable(t *testing.T) {
	tpl := testTemplates()
	frames := []image.Image{frameWith(), frameWith(), frameWith(tpl.FallOut)}
	detections := [][]Detection{{box(5)}, {box(12)}, nil}

	var results []Result
	for i := 0; i < 2; i++ {
		f := newFixture(frames, detections)
		results = append(results, evaluate(t, f))
	}
	assert.Equal(t, results[0].Fitness, results[1].Fitness)
	assert.Equal(t, results[0].Terminal, results[1].Terminal)
	assert.InDelta(t, 12-50.0, results[0].Fitness, 1e-9)
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	f := newFixture([]image.Image{frameWith()}, nil)
	f.rc.Actuator = nil
	_, err := NewRunner(f.rc)
	require.Error(t, err)
}
