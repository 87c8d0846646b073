package rectify

import "math"

// ellipseKernel returns, for each kernel row, the half width of an elliptical
// structuring element of the given diameter.
func ellipseKernel(size int) []int {
	if size < 1 {
		size = 1
	}
	r := size / 2
	c := size / 2
	rows := make([]int, size)
	for i := range size {
		dy := i - r
		switch {
		case r == 0:
			rows[i] = 0
		case absInt(dy) <= r:
			rows[i] = int(math.Round(float64(c) * math.Sqrt(float64(r*r-dy*dy)/float64(r*r))))
		default:
			rows[i] = -1
		}
	}
	return rows
}

// padMask surrounds mask with a background border of m pixels.
func padMask(mask []bool, w, h, m int) ([]bool, int, int) {
	pw, ph := w+2*m, h+2*m
	out := make([]bool, pw*ph)
	for y := range h {
		copy(out[(y+m)*pw+m:(y+m)*pw+m+w], mask[y*w:(y+1)*w])
	}
	return out, pw, ph
}

// unpadMask removes a border of m pixels.
func unpadMask(mask []bool, pw, ph, m int) []bool {
	w, h := pw-2*m, ph-2*m
	out := make([]bool, w*h)
	for y := range h {
		copy(out[y*w:(y+1)*w], mask[(y+m)*pw+m:(y+m)*pw+m+w])
	}
	return out
}

// closeMask applies a morphological closing (dilate then erode).
func closeMask(mask []bool, w, h int, kernel []int) []bool {
	return erodeMask(dilateMask(mask, w, h, kernel), w, h, kernel)
}

// rowPrefix returns per-row running counts of foreground pixels, w+1 entries per row.
func rowPrefix(mask []bool, w, h int) []int32 {
	p := make([]int32, (w+1)*h)
	for y := range h {
		base := y * (w + 1)
		for x := range w {
			p[base+x+1] = p[base+x]
			if mask[y*w+x] {
				p[base+x+1]++
			}
		}
	}
	return p
}

// dilateMask sets a pixel when any kernel position covers foreground.
// Positions outside the image are ignored.
func dilateMask(mask []bool, w, h int, kernel []int) []bool {
	prefix := rowPrefix(mask, w, h)
	r := len(kernel) / 2
	out := make([]bool, w*h)
	for y := range h {
		for x := range w {
			for k, hw := range kernel {
				yy := y + k - r
				if hw < 0 || yy < 0 || yy >= h {
					continue
				}
				x0, x1 := max(x-hw, 0), min(x+hw, w-1)
				base := yy * (w + 1)
				if prefix[base+x1+1]-prefix[base+x0] > 0 {
					out[y*w+x] = true
					break
				}
			}
		}
	}
	return out
}

// erodeMask keeps a pixel only when every in-image kernel position is foreground.
func erodeMask(mask []bool, w, h int, kernel []int) []bool {
	prefix := rowPrefix(mask, w, h)
	r := len(kernel) / 2
	out := make([]bool, w*h)
	for y := range h {
		for x := range w {
			keep := true
			for k, hw := range kernel {
				yy := y + k - r
				if hw < 0 || yy < 0 || yy >= h {
					continue
				}
				x0, x1 := max(x-hw, 0), min(x+hw, w-1)
				base := yy * (w + 1)
				if prefix[base+x1+1]-prefix[base+x0] != int32(x1-x0+1) {
					keep = false
					break
				}
			}
			out[y*w+x] = keep
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
