package episode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/baldhumanity/aiai-go/neat"
	"github.com/baldhumanity/aiai-go/neat/nn"
)

const (
	testWidth  = 40
	testHeight = 30
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Capture = CaptureConfig{Width: testWidth, Height: testHeight, Scale: 10}
	cfg.Episode.Warmup = 0
	return cfg
}

// pattern draws an 8x8 overlay whose colors stay outside the chroma key.
func pattern(seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(((x*(seed+1) + y*(seed+3)) % 5) * 60)
			img.SetRGBA(x, y, color.RGBA{200, v, v, 255})
		}
	}
	return img
}

func testTemplates() Templates {
	return Templates{
		TimeOver:  Template{Name: TemplateTimeOver, Image: pattern(0), Anchor: image.Pt(2, 2), Threshold: 0.75},
		FallOut:   Template{Name: TemplateFallOut, Image: pattern(1), Anchor: image.Pt(12, 2), Threshold: 0.75},
		Goal:      Template{Name: TemplateGoal, Image: pattern(2), Anchor: image.Pt(22, 2), Threshold: 0.75},
		ZeroSpeed: Template{Name: TemplateZeroSpeed, Image: pattern(3), Anchor: image.Pt(2, 18), Threshold: 0.94},
	}
}

// frameWith returns a flat gray frame with the given overlays pasted in.
func frameWith(overlays ...Template) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, testWidth, testHeight))
	draw.Draw(img, img.Rect, image.NewUniform(color.RGBA{180, 60, 60, 255}), image.Point{}, draw.Src)
	for _, t := range overlays {
		draw.Draw(img, t.Area(), t.Image, image.Point{}, draw.Src)
	}
	return img
}

type fakeFrames struct {
	frames []image.Image
	calls  int
	err    error
}

func (f *fakeFrames) Capture(context.Context) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := min(f.calls, len(f.frames)-1)
	f.calls++
	return f.frames[i], nil
}

type fakeActuator struct {
	commands []Command
	resets   int
}

func (a *fakeActuator) Apply(cmd Command) error {
	a.commands = append(a.commands, cmd)
	return nil
}

func (a *fakeActuator) Reset() error {
	a.resets++
	return nil
}

// fakeDetector returns detections[i] on call i, repeating the last entry.
type fakeDetector struct {
	detections [][]Detection
	calls      int
}

func (d *fakeDetector) Detect(context.Context, *image.Gray) ([]Detection, error) {
	if len(d.detections) == 0 {
		return nil, nil
	}
	i := min(d.calls, len(d.detections)-1)
	d.calls++
	return d.detections[i], nil
}

// box returns a confident detection whose proximity score is want.
func box(want float64) Detection {
	area := want / 125 * testWidth * testHeight
	return Detection{XMin: 0, YMin: 0, XMax: area / testHeight, YMax: testHeight, Confidence: 0.9}
}

type constNet struct{ out []float64 }

func (n constNet) Activate([]float64) ([]float64, error) { return n.out, nil }
func (n constNet) Reset()                                 {}

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type fixture struct {
	rc       *RunContext
	frames   *fakeFrames
	actuator *fakeActuator
	detector *fakeDetector
	clock    *fakeClock
}

func newFixture(frames []image.Image, detections [][]Detection) *fixture {
	f := &fixture{
		frames:   &fakeFrames{frames: frames},
		actuator: &fakeActuator{},
		detector: &fakeDetector{detections: detections},
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second},
	}
	f.rc = &RunContext{
		Config:    testConfig(),
		Resources: &Resources{Templates: testTemplates(), Detector: f.detector},
		Frames:    f.frames,
		Actuator:  f.actuator,
		Clock:     f.clock.Now,
		Sleep:     func(context.Context, time.Duration) error { return nil },
		NewNetwork: func(*neat.Genome) (nn.Network, error) {
			return constNet{out: []float64{0.5, -0.25}}, nil
		},
	}
	return f
}

func testGenome(key int) *neat.Genome {
	return neat.NewGenome(key, &neat.GenomeConfig{})
}

var errCapture = errors.New("capture device gone")
