package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale resizes img to w x h with bilinear interpolation. Each output
// pixel blends only the 2x2 source pixels around its center, without
// widening the kernel when shrinking.
func Downscale(img image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(out, out.Rect, img, img.Bounds(), draw.Src, nil)
	return out
}

// FlattenBGR writes the pixels of img row by row into dst as raw 0..255
// values in blue, green, red order, and returns dst. dst is grown when it is
// too short.
func FlattenBGR(img image.Image, dst []float64) []float64 {
	src := ToRGBA(img)
	b := src.Rect
	n := b.Dx() * b.Dy() * 3
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	i := 0
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4:]
			dst[i] = float64(p[2])
			dst[i+1] = float64(p[1])
			dst[i+2] = float64(p[0])
			i += 3
		}
	}
	return dst
}
