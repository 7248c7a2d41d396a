package vision

import (
	"fmt"
	"image"
)

const (
	ssimWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimRange  = 255.0
)

// SSIM computes the mean structural similarity of two equally sized
// grayscale images. It uses a 7x7 uniform window with sample covariance and
// averages over the pixels whose window lies fully inside the image, which
// matches scikit-image's structural_similarity for 8-bit input.
func SSIM(a, b *image.Gray) (float64, error) {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if b.Rect.Dx() != w || b.Rect.Dy() != h {
		return 0, fmt.Errorf("ssim %dx%d vs %dx%d: %w", w, h, b.Rect.Dx(), b.Rect.Dy(), ErrSizeMismatch)
	}
	if w < ssimWindow || h < ssimWindow {
		return 0, fmt.Errorf("ssim %dx%d: %w", w, h, ErrTooSmall)
	}

	sa := newIntegral(w, h)
	sb := newIntegral(w, h)
	saa := newIntegral(w, h)
	sbb := newIntegral(w, h)
	sab := newIntegral(w, h)
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride:]
		rb := b.Pix[y*b.Stride:]
		for x := 0; x < w; x++ {
			va, vb := float64(ra[x]), float64(rb[x])
			sa.add(x, y, va)
			sb.add(x, y, vb)
			saa.add(x, y, va*va)
			sbb.add(x, y, vb*vb)
			sab.add(x, y, va*vb)
		}
	}

	const (
		np      = ssimWindow * ssimWindow
		covNorm = float64(np) / float64(np-1)
		c1      = (ssimK1 * ssimRange) * (ssimK1 * ssimRange)
		c2      = (ssimK2 * ssimRange) * (ssimK2 * ssimRange)
		pad     = (ssimWindow - 1) / 2
	)
	var total float64
	n := 0
	for y := pad; y < h-pad; y++ {
		for x := pad; x < w-pad; x++ {
			x0, y0, x1, y1 := x-pad, y-pad, x+pad+1, y+pad+1
			ux := sa.sum(x0, y0, x1, y1) / np
			uy := sb.sum(x0, y0, x1, y1) / np
			uxx := saa.sum(x0, y0, x1, y1) / np
			uyy := sbb.sum(x0, y0, x1, y1) / np
			uxy := sab.sum(x0, y0, x1, y1) / np
			vx := covNorm * (uxx - ux*ux)
			vy := covNorm * (uyy - uy*uy)
			vxy := covNorm * (uxy - ux*uy)

			num := (2*ux*uy + c1) * (2*vxy + c2)
			den := (ux*ux + uy*uy + c1) * (vx + vy + c2)
			total += num / den
			n++
		}
	}
	return total / float64(n), nil
}

// integral is a summed-area table with a zero first row and column.
type integral struct {
	w    int
	data []float64
}

func newIntegral(w, h int) *integral {
	return &integral{w: w + 1, data: make([]float64, (w+1)*(h+1))}
}

// add must be called in row-major order.
func (t *integral) add(x, y int, v float64) {
	i := (y+1)*t.w + x + 1
	t.data[i] = v + t.data[i-1] + t.data[i-t.w] - t.data[i-t.w-1]
}

// sum returns the total over [x0,x1) x [y0,y1).
func (t *integral) sum(x0, y0, x1, y1 int) float64 {
	return t.data[y1*t.w+x1] - t.data[y0*t.w+x1] - t.data[y1*t.w+x0] + t.data[y0*t.w+x0]
}
