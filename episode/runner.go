package episode

import (
	"context"
	"errors"
	"fmt"

	"github.com/baldhumanity/aiai-go/neat"
)

// Runner plays episodes. It is not safe for concurrent use: all episodes
// share the game, its controller and the frame source.
type Runner struct {
	rc       *RunContext
	sensor   Sensor
	detector *Detector
}

// NewRunner checks rc and prepares the sensor and detector.
func NewRunner(rc *RunContext) (*Runner, error) {
	switch {
	case rc.Config == nil:
		return nil, errors.New("run context has no config")
	case rc.Resources == nil || rc.Resources.Detector == nil:
		return nil, errors.New("run context has no object detector")
	case rc.Frames == nil:
		return nil, errors.New("run context has no frame source")
	case rc.Actuator == nil:
		return nil, errors.New("run context has no actuator")
	}
	det, err := NewDetector(&rc.Config.Episode, rc.Resources)
	if err != nil {
		return nil, err
	}
	c := rc.Config.Capture
	return &Runner{
		rc:       rc,
		sensor:   NewSensor(c.Width, c.Height, c.Scale),
		detector: det,
	}, nil
}

// Sensor returns the sensor that feeds the networks.
func (r *Runner) Sensor() Sensor {
	return r.sensor
}

// Evaluate plays one episode with genome and stores the resulting fitness on
// it. The controller is always returned to neutral before Evaluate returns.
func (r *Runner) Evaluate(ctx context.Context, genome *neat.Genome, generation int) (res Result, err error) {
	cfg := &r.rc.Config.Episode
	logger := r.rc.logger().With("generation", generation, "genome", genome.Key)

	net, err := r.rc.network(genome)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build network for genome %d: %w", genome.Key, err)
	}
	defer func() {
		if nerr := r.rc.Actuator.Apply(Neutral); nerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release controller: %w", nerr))
		}
	}()

	if err := r.rc.sleep(ctx, cfg.Warmup); err != nil {
		return Result{}, err
	}
	if err := r.rc.Actuator.Reset(); err != nil {
		return Result{}, fmt.Errorf("failed to reset game: %w", err)
	}
	logger.Debug("running genome")

	st := State{
		StartTime:  r.rc.now(),
		Terminal:   Running,
		Stagnation: NewStagnation(cfg.MaxSteps, cfg.ZeroSpeedJump),
	}
	for !st.Terminal.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := r.tick(ctx, net.Activate, &st); err != nil {
			return Result{}, fmt.Errorf("genome %d tick %d: %w", genome.Key, st.Ticks, err)
		}
		switch {
		case st.Terminal == Stagnated:
			logger.Debug("timed out due to stagnation", "ticks", st.Ticks)
		case st.Terminal.IsTerminal():
			logger.Debug("episode event", "event", st.Terminal, "ticks", st.Ticks)
		}
	}

	genome.SetFitness(st.MaxFitness)
	res = Result{
		GenomeKey:  genome.Key,
		Generation: generation,
		Fitness:    st.MaxFitness,
		Terminal:   st.Terminal,
		Ticks:      st.Ticks,
		Elapsed:    r.rc.now().Sub(st.StartTime),
	}
	logger.Info("episode finished", "fitness", res.Fitness, "end", res.Terminal)
	return res, nil
}

// tick runs one capture, act and detect cycle and updates st.
func (r *Runner) tick(ctx context.Context, activate func([]float64) ([]float64, error), st *State) error {
	cfg := &r.rc.Config.Episode

	frame, err := r.rc.Frames.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	input, err := r.sensor.Vector(frame)
	if err != nil {
		return err
	}
	out, err := activate(input)
	if err != nil {
		return fmt.Errorf("network activation failed: %w", err)
	}
	if len(out) < 2 {
		return fmt.Errorf("network produced %d outputs, need 2", len(out))
	}
	if err := r.rc.Actuator.Apply(Command{X: out[0], Y: out[1]}); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}

	proximity, err := r.detector.GoalProximity(ctx, frame)
	if err != nil {
		return err
	}
	st.MaxFitness = max(st.MaxFitness, proximity)
	st.Ticks++

	st.Terminal, err = r.detector.Classify(frame)
	if err != nil {
		return err
	}
	switch st.Terminal {
	case TimeOver:
		st.MaxFitness -= cfg.TimeOverPenalty
		return nil
	case FallOut:
		st.MaxFitness -= cfg.FallOutPenalty
		return nil
	case Goal:
		elapsed := r.rc.now().Sub(st.StartTime).Seconds()
		st.MaxFitness = cfg.GoalBase + cfg.GoalRate*(cfg.GoalPar-elapsed)
		return nil
	}

	stagnated, err := st.Stagnation.Observe(st.MaxFitness, func() (bool, error) {
		return r.detector.Stalled(frame)
	})
	if err != nil {
		return err
	}
	if stagnated || (cfg.MaxTicks > 0 && st.Ticks >= cfg.MaxTicks) {
		st.Terminal = Stagnated
		st.MaxFitness -= cfg.StagnationPenalty
	}
	return nil
}
