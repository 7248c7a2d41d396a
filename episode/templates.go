package episode

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/aiai-go/vision"
)

// Template names used by the detector.
const (
	TemplateTimeOver  = "time_over"
	TemplateFallOut   = "fall_out"
	TemplateGoal      = "goal"
	TemplateZeroSpeed = "zero_speed"
)

// Template is a reference image compared against a fixed place in the frame.
type Template struct {
	Name  string
	Image *image.RGBA
	// Anchor is the top-left corner of the compared area, relative to the
	// capture region.
	Anchor    image.Point
	Threshold float64
}

// Area returns the frame rectangle the template is compared against.
func (t Template) Area() image.Rectangle {
	return image.Rectangle{Min: t.Anchor, Max: t.Anchor.Add(t.Image.Rect.Size())}
}

// Templates are the four overlays the detector looks for.
type Templates struct {
	TimeOver  Template
	FallOut   Template
	Goal      Template
	ZeroSpeed Template
}

type manifest struct {
	Templates []manifestEntry `yaml:"templates"`
}

type manifestEntry struct {
	Name   string `yaml:"name"`
	File   string `yaml:"file"`
	Anchor struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"anchor"`
	Threshold *float64 `yaml:"threshold"`
}

// LoadTemplates reads the YAML manifest at path and decodes the PNG or BMP
// files it names, relative to the manifest. Anchors in the manifest are
// screen coordinates and are shifted into the capture region. Entries
// without a threshold get match_threshold, or stall_threshold for
// zero_speed. All four templates are required.
func LoadTemplates(path string, cfg *Config) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("failed to read template manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Templates{}, fmt.Errorf("failed to parse template manifest '%s': %w", path, err)
	}

	var out Templates
	slots := map[string]*Template{
		TemplateTimeOver:  &out.TimeOver,
		TemplateFallOut:   &out.FallOut,
		TemplateGoal:      &out.Goal,
		TemplateZeroSpeed: &out.ZeroSpeed,
	}
	region := cfg.Capture.Region()
	dir := filepath.Dir(path)
	for _, e := range m.Templates {
		slot, ok := slots[e.Name]
		if !ok {
			return Templates{}, fmt.Errorf("unknown template %q in '%s'", e.Name, path)
		}
		if slot.Image != nil {
			return Templates{}, fmt.Errorf("template %q listed twice in '%s'", e.Name, path)
		}
		file := e.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		img, err := loadImage(file)
		if err != nil {
			return Templates{}, fmt.Errorf("template %q: %w", e.Name, err)
		}
		threshold := cfg.Episode.MatchThreshold
		if e.Name == TemplateZeroSpeed {
			threshold = cfg.Episode.StallThreshold
		}
		if e.Threshold != nil {
			threshold = *e.Threshold
		}
		*slot = Template{
			Name:      e.Name,
			Image:     img,
			Anchor:    image.Pt(e.Anchor.X, e.Anchor.Y).Sub(region.Min),
			Threshold: threshold,
		}
		if !slot.Area().In(image.Rect(0, 0, region.Dx(), region.Dy())) {
			return Templates{}, fmt.Errorf("template %q at %v: %w", e.Name, slot.Area(), ErrTemplateBounds)
		}
	}
	for _, name := range []string{TemplateTimeOver, TemplateFallOut, TemplateGoal, TemplateZeroSpeed} {
		if slots[name].Image == nil {
			return Templates{}, fmt.Errorf("template %q missing from '%s'", name, path)
		}
	}
	return out, nil
}

func loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", path, err)
	}
	return vision.ToRGBA(img), nil
}
