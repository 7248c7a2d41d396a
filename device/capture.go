package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/baldhumanity/aiai-go/vision"
)

// CommandSource captures the screen by running a command that writes a PNG
// screenshot to stdout, such as "grim -t png -" or "import -window root png:-".
type CommandSource struct {
	args   []string
	region image.Rectangle
}

// NewCommandSource splits command on whitespace. region is in screen
// coordinates.
func NewCommandSource(command string, region image.Rectangle) (*CommandSource, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("device: empty capture command")
	}
	return &CommandSource{args: args, region: region}, nil
}

func (s *CommandSource) Capture(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("device: capture command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	shot, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("device: cannot decode screenshot: %w", err)
	}
	return cropRegion(shot, s.region)
}

// DirSource replays the PNG files of a directory in name order and starts
// over after the last one.
type DirSource struct {
	files  []string
	region image.Rectangle
	next   int
}

func NewDirSource(dir string, region image.Rectangle) (*DirSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("device: cannot list frames: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("device: no PNG frames in %s", dir)
	}
	slices.Sort(files)
	return &DirSource{files: files, region: region}, nil
}

func (s *DirSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("device: cannot decode %s: %w", path, err)
	}
	return cropRegion(img, s.region)
}

// cropRegion cuts the capture region out of a full screenshot. Images that
// already have the region's size are taken as pre-cropped.
func cropRegion(img image.Image, region image.Rectangle) (image.Image, error) {
	if img.Bounds().Size() == region.Size() {
		return vision.ToRGBA(img), nil
	}
	return vision.Crop(img, region)
}
