package episode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"gopkg.in/ini.v1"

	"github.com/baldhumanity/aiai-go/vision"
)

// Config is the run configuration read from aiai.ini. Every key is optional;
// missing keys keep the values from DefaultConfig.
type Config struct {
	Capture  CaptureConfig
	Episode  EpisodeConfig
	Actuator ActuatorConfig
	Detector DetectorConfig
	Stats    StatsConfig
	Run      RunConfig
}

// CaptureConfig is the [Capture] section. X and Y are the screen position of
// the captured region; template anchors are given in the same screen space.
type CaptureConfig struct {
	X         int    `ini:"x"`
	Y         int    `ini:"y"`
	Width     int    `ini:"width"`
	Height    int    `ini:"height"`
	Scale     int    `ini:"scale"`
	Command   string `ini:"command"`
	FramesDir string `ini:"frames_dir"`
}

// Region returns the captured screen rectangle.
func (c CaptureConfig) Region() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// EpisodeConfig is the [Episode] section.
type EpisodeConfig struct {
	Warmup        time.Duration `ini:"warmup"`
	MaxSteps      int           `ini:"max_steps"`
	ZeroSpeedJump int           `ini:"zero_speed_jump"`
	MaxTicks      int           `ini:"max_ticks"`

	TimeOverPenalty   float64 `ini:"time_over_penalty"`
	FallOutPenalty    float64 `ini:"fall_out_penalty"`
	StagnationPenalty float64 `ini:"stagnation_penalty"`
	GoalBase          float64 `ini:"goal_base"`
	GoalRate          float64 `ini:"goal_rate"`
	GoalPar           float64 `ini:"goal_par_seconds"`

	NoGoalScore    float64 `ini:"no_goal_score"`
	MinConfidence  float64 `ini:"min_confidence"`
	ProximityScale float64 `ini:"proximity_scale"`
	ProximityCap   float64 `ini:"proximity_cap"`

	MatchThreshold float64 `ini:"match_threshold"`
	StallThreshold float64 `ini:"stall_threshold"`
	// Chroma bounds are blue,green,red triples.
	ChromaLow  []int `ini:"chroma_low" delim:","`
	ChromaHigh []int `ini:"chroma_high" delim:","`
}

// ChromaRange converts the configured blue,green,red bounds.
func (c EpisodeConfig) ChromaRange() vision.Range {
	bgr := func(v []int) color.RGBA {
		return color.RGBA{R: uint8(v[2]), G: uint8(v[1]), B: uint8(v[0]), A: 255}
	}
	return vision.Range{Low: bgr(c.ChromaLow), High: bgr(c.ChromaHigh)}
}

// ActuatorConfig is the [Actuator] section.
type ActuatorConfig struct {
	Pipe        string `ini:"pipe"`
	ResetButton string `ini:"reset_button"`
}

// DetectorConfig is the [Detector] section.
type DetectorConfig struct {
	URL     string        `ini:"url"`
	Timeout time.Duration `ini:"timeout"`
}

// StatsConfig is the [Stats] section.
type StatsConfig struct {
	Enabled bool   `ini:"enabled"`
	CSV     string `ini:"csv"`
	SQLite  string `ini:"sqlite"`
	RunID   string `ini:"run_id"`
}

// RunConfig is the [Run] section.
type RunConfig struct {
	NeatConfig         string  `ini:"neat_config"`
	Templates          string  `ini:"templates"`
	Generations        int     `ini:"generations"`
	HistoryDir         string  `ini:"history_dir"`
	CheckpointPrefix   string  `ini:"checkpoint_prefix"`
	CheckpointInterval int     `ini:"checkpoint_interval"`
	Winner             string  `ini:"winner"`
	PenalizeFailures   bool    `ini:"penalize_failures"`
	FailureFitness     float64 `ini:"failure_fitness"`
}

// DefaultConfig returns the settings the game was tuned with: a 1300x1000
// region at (310,30) sampled every 25 pixels.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{X: 310, Y: 30, Width: 1300, Height: 1000, Scale: 25},
		Episode: EpisodeConfig{
			Warmup:            2500 * time.Millisecond,
			MaxSteps:          500,
			ZeroSpeedJump:     60,
			MaxTicks:          20000,
			TimeOverPenalty:   25,
			FallOutPenalty:    50,
			StagnationPenalty: 25,
			GoalBase:          30,
			GoalRate:          1.25,
			GoalPar:           60,
			NoGoalScore:       -25,
			MinConfidence:     0.55,
			ProximityScale:    125,
			ProximityCap:      50,
			MatchThreshold:    0.75,
			StallThreshold:    0.94,
			ChromaLow:         []int{0, 10, 0},
			ChromaHigh:        []int{120, 255, 100},
		},
		Actuator: ActuatorConfig{ResetButton: "D_UP"},
		Detector: DetectorConfig{URL: "http://127.0.0.1:8000/detect", Timeout: 5 * time.Second},
		Stats:    StatsConfig{Enabled: true, CSV: "stats.csv"},
		Run: RunConfig{
			NeatConfig:         "config-feedforward",
			Templates:          "templates.yaml",
			HistoryDir:         "history",
			CheckpointPrefix:   "neat-checkpoint-",
			CheckpointInterval: 1,
			Winner:             "winner.gob",
			FailureFitness:     -50,
		},
	}
}

// LoadConfig reads a run configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load run config '%s': %w", path, err)
	}
	return parseConfig(f)
}

// ParseConfig reads a run configuration from in-memory INI data.
func ParseConfig(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}
	return parseConfig(f)
}

func parseConfig(f *ini.File) (*Config, error) {
	cfg := DefaultConfig()
	sections := []struct {
		name string
		dst  any
	}{
		{"Capture", &cfg.Capture},
		{"Episode", &cfg.Episode},
		{"Actuator", &cfg.Actuator},
		{"Detector", &cfg.Detector},
		{"Stats", &cfg.Stats},
		{"Run", &cfg.Run},
	}
	for _, s := range sections {
		if !f.HasSection(s.name) {
			continue
		}
		if err := f.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside an
// episode.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Capture.Width > 0 && c.Capture.Height > 0, "capture size must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	check(c.Capture.Scale > 0, "capture scale must be positive, got %d", c.Capture.Scale)
	check(c.Capture.Scale <= c.Capture.Width && c.Capture.Scale <= c.Capture.Height,
		"capture scale %d exceeds region %dx%d", c.Capture.Scale, c.Capture.Width, c.Capture.Height)
	check(c.Episode.MaxSteps > 0, "max_steps must be positive, got %d", c.Episode.MaxSteps)
	check(c.Episode.ZeroSpeedJump > 0, "zero_speed_jump must be positive, got %d", c.Episode.ZeroSpeedJump)
	check(c.Episode.MaxTicks >= 0, "max_ticks must not be negative, got %d", c.Episode.MaxTicks)
	check(c.Episode.Warmup >= 0, "warmup must not be negative, got %s", c.Episode.Warmup)
	check(len(c.Episode.ChromaLow) == 3 && len(c.Episode.ChromaHigh) == 3, "chroma bounds need three values each")
	for _, v := range append(append([]int(nil), c.Episode.ChromaLow...), c.Episode.ChromaHigh...) {
		check(v >= 0 && v <= 255, "chroma bound %d outside 0..255", v)
	}
	check(c.Run.CheckpointInterval >= 0, "checkpoint_interval must not be negative, got %d", c.Run.CheckpointInterval)
	return errors.Join(errs...)
}
