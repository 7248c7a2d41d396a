package episode

import (
	"errors"
	"fmt"
	"image"

	"github.com/baldhumanity/aiai-go/vision"
)

// ErrFrameSize is returned for frames that do not match the capture region.
var ErrFrameSize = errors.New("frame size does not match capture region")

// Sensor turns frames into network inputs: the frame is resampled to
// (width/scale) x (height/scale) and flattened row by row as blue, green,
// red values in 0..255.
type Sensor struct {
	width, height int
	cols, rows    int
}

func NewSensor(width, height, scale int) Sensor {
	return Sensor{width: width, height: height, cols: width / scale, rows: height / scale}
}

// Len is the length of every vector the sensor produces.
func (s Sensor) Len() int {
	return s.cols * s.rows * 3
}

// Vector converts one frame.
func (s Sensor) Vector(frame image.Image) ([]float64, error) {
	if err := s.check(frame); err != nil {
		return nil, err
	}
	small := vision.Downscale(frame, s.cols, s.rows)
	return vision.FlattenBGR(small, make([]float64, 0, s.Len())), nil
}

func (s Sensor) check(frame image.Image) error {
	if b := frame.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("got %dx%d, want %dx%d: %w", b.Dx(), b.Dy(), s.width, s.height, ErrFrameSize)
	}
	return nil
}
