// Package episode runs one NEAT genome through a live game episode and turns
// what it sees on screen into a fitness value.
//
// Each tick captures the game region, feeds the down-sampled frame to the
// genome's network, sends the two outputs to the controller and then checks
// the frame for terminal overlays (time over, fall out, goal) and for
// stagnation. A Coordinator runs whole generations one genome at a time.
package episode

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/baldhumanity/aiai-go/neat"
	"github.com/baldhumanity/aiai-go/neat/nn"
)

var discardLogger = log.New(io.Discard)

// Terminal is the state of an episode.
type Terminal string

const (
	Running   Terminal = "running"
	TimeOver  Terminal = "time_over"
	FallOut   Terminal = "fall_out"
	Goal      Terminal = "goal"
	Stagnated Terminal = "stagnated"
)

// IsTerminal reports whether the episode has ended.
func (t Terminal) IsTerminal() bool {
	return t != Running && t != ""
}

// Command is one analog stick position produced by a network.
type Command struct {
	X, Y float64
}

// Neutral centers the stick.
var Neutral = Command{}

// State is the mutable record of the episode in progress.
type State struct {
	StartTime  time.Time
	MaxFitness float64
	Ticks      int
	Terminal   Terminal
	Stagnation Stagnation
}

// Result summarizes a finished episode.
type Result struct {
	GenomeKey  int
	Generation int
	Fitness    float64
	Terminal   Terminal
	Ticks      int
	Elapsed    time.Duration
}

// Detection is one region found by the object detector, in frame pixels.
type Detection struct {
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
	Confidence float64 `json:"confidence"`
}

// Area returns the box area, or 0 for a degenerate box.
func (d Detection) Area() float64 {
	w, h := d.XMax-d.XMin, d.YMax-d.YMin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// FrameSource returns the current game region. Frames must have the
// configured capture size.
type FrameSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Actuator applies controller input to the game.
type Actuator interface {
	Apply(cmd Command) error
	// Reset returns the game to its saved starting state.
	Reset() error
}

// ObjectDetector finds goal markers in a grayscale frame.
type ObjectDetector interface {
	Detect(ctx context.Context, img *image.Gray) ([]Detection, error)
}

// Resources are the read-only assets shared by every episode of a run.
type Resources struct {
	Templates Templates
	Detector  ObjectDetector
}

// RunContext bundles the configuration, assets and devices an episode needs.
// Only one episode may use a RunContext at a time.
type RunContext struct {
	Config    *Config
	Resources *Resources
	Frames    FrameSource
	Actuator  Actuator
	Logger    *log.Logger

	// Clock and Sleep default to the wall clock.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	// NewNetwork defaults to nn.New.
	NewNetwork func(g *neat.Genome) (nn.Network, error)
}

func (rc *RunContext) now() time.Time {
	if rc.Clock != nil {
		return rc.Clock()
	}
	return time.Now()
}

func (rc *RunContext) sleep(ctx context.Context, d time.Duration) error {
	if rc.Sleep != nil {
		return rc.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (rc *RunContext) network(g *neat.Genome) (nn.Network, error) {
	if rc.NewNetwork != nil {
		return rc.NewNetwork(g)
	}
	return nn.New(g)
}

func (rc *RunContext) logger() *log.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return discardLogger
}
