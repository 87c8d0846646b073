package matcher

import (
	"image"

	"github.com/MeKo-Tech/formflow/internal/mempool"
)

// patchBorder keeps descriptor patches (radius 15) inside the image.
const patchBorder = 16

// Bresenham circle of radius 3 used by FAST.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// detectCorners runs FAST-9, ranks survivors of 3x3 non-maximum suppression
// by Harris response and keeps the best limit.
func detectCorners(g *image.Gray, threshold, limit int) []corner {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < 2*patchBorder+1 || h < 2*patchBorder+1 {
		return nil
	}
	score := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(score)
	var candidates []corner
	for y := patchBorder; y < h-patchBorder; y++ {
		for x := patchBorder; x < w-patchBorder; x++ {
			if !isFastCorner(g, x, y, threshold) {
				continue
			}
			s := harrisResponse(g, x, y)
			if s <= 0 {
				continue
			}
			score[y*w+x] = s
			candidates = append(candidates, corner{x: x, y: y, score: s})
		}
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if isLocalMax(score, w, c.x, c.y) {
			kept = append(kept, c)
		}
	}
	sortCorners(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func isLocalMax(score []float64, w, x, y int) bool {
	s := score[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := score[(y+dy)*w+x+dx]
			// Ties go to the first pixel in scan order.
			if n > s || (n == s && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

func isFastCorner(g *image.Gray, x, y, t int) bool {
	p := int(g.Pix[y*g.Stride+x])
	var state [16]int8
	brighter, darker := 0, 0
	for i, o := range fastCircle {
		v := int(g.Pix[(y+o[1])*g.Stride+x+o[0]])
		switch {
		case v > p+t:
			state[i] = 1
			brighter++
		case v < p-t:
			state[i] = -1
			darker++
		}
	}
	if brighter < 9 && darker < 9 {
		return false
	}
	for _, want := range [2]int8{1, -1} {
		run := 0
		for i := range 32 {
			if state[i%16] == want {
				run++
				if run >= 9 {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

// harrisResponse evaluates det(M) - k*trace(M)^2 over a 7x7 window of Sobel gradients.
func harrisResponse(g *image.Gray, x, y int) float64 {
	const k = 0.04
	var sxx, syy, sxy float64
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			px, py := x+dx, y+dy
			at := func(ox, oy int) float64 { return float64(g.Pix[(py+oy)*g.Stride+px+ox]) }
			ix := (at(1, -1) + 2*at(1, 0) + at(1, 1)) - (at(-1, -1) + 2*at(-1, 0) + at(-1, 1))
			iy := (at(-1, 1) + 2*at(0, 1) + at(1, 1)) - (at(-1, -1) + 2*at(0, -1) + at(1, -1))
			sxx += ix * ix
			syy += iy * iy
			sxy += ix * iy
		}
	}
	trace := sxx + syy
	return sxx*syy - sxy*sxy - k*trace*trace
}
