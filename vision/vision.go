// Package vision holds the image primitives used to read the game screen:
// cropping, chroma-key masking, grayscale conversion, structural similarity
// and resampling into sensor vectors.
package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

var (
	// ErrTooSmall is returned by SSIM for images smaller than the 7x7 window.
	ErrTooSmall = errors.New("image smaller than the similarity window")
	// ErrSizeMismatch is returned when two images that must match in size do not.
	ErrSizeMismatch = errors.New("image sizes differ")
	// ErrOutOfBounds is returned when a crop rectangle leaves the image.
	ErrOutOfBounds = errors.New("rectangle outside image bounds")
)

// ToRGBA returns img as an *image.RGBA whose bounds start at the origin.
// RGBA images already anchored at the origin are returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// Crop copies the part of img inside r into a new origin-anchored image.
func Crop(img image.Image, r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() || !r.In(img.Bounds()) {
		return nil, fmt.Errorf("crop %v of %v: %w", r, img.Bounds(), ErrOutOfBounds)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Rect, img, r.Min, draw.Src)
	return out, nil
}

// Range is an inclusive per-channel color range.
type Range struct {
	Low, High color.RGBA
}

// Contains reports whether c lies inside the range on all three color
// channels. Alpha is ignored.
func (r Range) Contains(c color.RGBA) bool {
	return c.R >= r.Low.R && c.R <= r.High.R &&
		c.G >= r.Low.G && c.G <= r.High.G &&
		c.B >= r.Low.B && c.B <= r.High.B
}

// ChromaMask marks every pixel of img whose color is inside keep-out range r.
// The mask is indexed y*width+x.
func ChromaMask(img image.Image, r Range) []bool {
	src := ToRGBA(img)
	b := src.Rect
	mask := make([]bool, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			mask[y*b.Dx()+x] = r.Contains(color.RGBA{p[0], p[1], p[2], p[3]})
		}
	}
	return mask
}

// ApplyMask returns a copy of img with the masked pixels set to black.
func ApplyMask(img image.Image, mask []bool) (*image.RGBA, error) {
	b := img.Bounds()
	if len(mask) != b.Dx()*b.Dy() {
		return nil, fmt.Errorf("mask of %d pixels for %dx%d image: %w", len(mask), b.Dx(), b.Dy(), ErrSizeMismatch)
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	for i, m := range mask {
		if !m {
			continue
		}
		x, y := i%b.Dx(), i/b.Dx()
		p := out.Pix[y*out.Stride+x*4:]
		p[0], p[1], p[2] = 0, 0, 0
	}
	return out, nil
}

// Gray converts img to 8-bit luma with the BT.601 weights
// 0.299 R + 0.587 G + 0.114 B, rounded to nearest.
func Gray(img image.Image) *image.Gray {
	src := ToRGBA(img)
	b := src.Rect
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		in := src.Pix[y*src.Stride:]
		row := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := int(in[x*4]), int(in[x*4+1]), int(in[x*4+2])
			row[x] = uint8((299*r + 587*g + 114*bl + 500) / 1000)
		}
	}
	return out
}
