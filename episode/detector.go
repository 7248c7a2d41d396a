package episode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/baldhumanity/aiai-go/vision"
)

// ErrTemplateBounds is returned when a template does not fit in the frame at
// its anchor.
var ErrTemplateBounds = errors.New("template outside frame")

// Detector classifies frames by comparing them with the overlay templates
// and estimates goal proximity with the object detector.
type Detector struct {
	cfg       *EpisodeConfig
	res       *Resources
	chroma    vision.Range
	reference map[string]prepared
}

// prepared caches the masked grayscale version of a template.
type prepared struct {
	src  *image.RGBA
	mask []bool
	gray *image.Gray
}

// NewDetector prepares the templates in res for matching.
func NewDetector(cfg *EpisodeConfig, res *Resources) (*Detector, error) {
	if len(cfg.ChromaLow) != 3 || len(cfg.ChromaHigh) != 3 {
		return nil, fmt.Errorf("chroma bounds need three values each, got %v and %v", cfg.ChromaLow, cfg.ChromaHigh)
	}
	d := &Detector{cfg: cfg, res: res, chroma: cfg.ChromaRange(), reference: make(map[string]prepared)}
	for _, t := range []Template{res.Templates.TimeOver, res.Templates.FallOut, res.Templates.Goal, res.Templates.ZeroSpeed} {
		if t.Image == nil {
			return nil, fmt.Errorf("template %q is not loaded", t.Name)
		}
		p, err := d.prepare(t)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		d.reference[t.Name] = p
	}
	return d, nil
}

func (d *Detector) prepare(t Template) (prepared, error) {
	mask := vision.ChromaMask(t.Image, d.chroma)
	masked, err := vision.ApplyMask(t.Image, mask)
	if err != nil {
		return prepared{}, err
	}
	return prepared{src: t.Image, mask: mask, gray: vision.Gray(masked)}, nil
}

// Similarity returns the structural similarity between the template and the
// frame area under it. Pixels whose template color falls in the chroma key
// range are blanked in both images first, so HUD and background colors do
// not count.
func (d *Detector) Similarity(frame image.Image, t Template) (float64, error) {
	p, ok := d.reference[t.Name]
	if !ok || p.src != t.Image {
		var err error
		if p, err = d.prepare(t); err != nil {
			return 0, err
		}
	}
	area := t.Area().Add(frame.Bounds().Min)
	if !area.In(frame.Bounds()) {
		return 0, fmt.Errorf("template %q at %v: %w", t.Name, t.Area(), ErrTemplateBounds)
	}
	crop, err := vision.Crop(frame, area)
	if err != nil {
		return 0, err
	}
	masked, err := vision.ApplyMask(crop, p.mask)
	if err != nil {
		return 0, err
	}
	score, err := vision.SSIM(p.gray, vision.Gray(masked))
	if err != nil {
		return 0, fmt.Errorf("template %q: %w", t.Name, err)
	}
	return score, nil
}

// Matches reports whether the similarity exceeds the template threshold.
func (d *Detector) Matches(frame image.Image, t Template) (bool, float64, error) {
	score, err := d.Similarity(frame, t)
	if err != nil {
		return false, 0, err
	}
	return score > t.Threshold, score, nil
}

// Classify checks time over, fall out and goal in that order and returns the
// first overlay found, or Running.
func (d *Detector) Classify(frame image.Image) (Terminal, error) {
	checks := []struct {
		t    Template
		kind Terminal
	}{
		{d.res.Templates.TimeOver, TimeOver},
		{d.res.Templates.FallOut, FallOut},
		{d.res.Templates.Goal, Goal},
	}
	for _, c := range checks {
		ok, _, err := d.Matches(frame, c.t)
		if err != nil {
			return Running, err
		}
		if ok {
			return c.kind, nil
		}
	}
	return Running, nil
}

// Stalled reports whether the speed readout shows zero.
func (d *Detector) Stalled(frame image.Image) (bool, error) {
	ok, _, err := d.Matches(frame, d.res.Templates.ZeroSpeed)
	return ok, err
}

// GoalProximity scores how close the goal marker looks. The most confident
// detection counts if its confidence exceeds min_confidence; its share of
// the frame area is scaled by proximity_scale and capped at proximity_cap.
// Without such a detection the score is no_goal_score.
func (d *Detector) GoalProximity(ctx context.Context, frame image.Image) (float64, error) {
	detections, err := d.res.Detector.Detect(ctx, vision.Gray(frame))
	if err != nil {
		return 0, fmt.Errorf("object detection failed: %w", err)
	}
	best := -1
	for i, det := range detections {
		if best < 0 || det.Confidence > detections[best].Confidence {
			best = i
		}
	}
	if best < 0 || detections[best].Confidence <= d.cfg.MinConfidence {
		return d.cfg.NoGoalScore, nil
	}
	b := frame.Bounds()
	share := detections[best].Area() / float64(b.Dx()*b.Dy())
	return math.Min(share*d.cfg.ProximityScale, d.cfg.ProximityCap), nil
}
