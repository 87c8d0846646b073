package matcher

import (
	"image"
	"math"
	"math/rand"
)

const patchRadius = 15

// briefPattern holds 256 point pairs inside the patch disc. It is generated
// from a fixed seed so descriptors are comparable across runs and processes.
var briefPattern = func() [256][4]float64 {
	rng := rand.New(rand.NewSource(0x5eed)) //nolint:gosec // fixed sampling pattern
	sample := func() (float64, float64) {
		for {
			x := math.Round(rng.NormFloat64() * 6)
			y := math.Round(rng.NormFloat64() * 6)
			if x*x+y*y <= (patchRadius-2)*(patchRadius-2) {
				return x, y
			}
		}
	}
	var p [256][4]float64
	for i := range p {
		for {
			x1, y1 := sample()
			x2, y2 := sample()
			if x1 != x2 || y1 != y2 {
				p[i] = [4]float64{x1, y1, x2, y2}
				break
			}
		}
	}
	return p
}()

// intensityAngle is the orientation of the patch's intensity centroid.
func intensityAngle(g *image.Gray, cx, cy int) float64 {
	var m01, m10 float64
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > patchRadius*patchRadius {
				continue
			}
			v := float64(g.Pix[(cy+dy)*g.Stride+cx+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

// describe computes the steered BRIEF descriptor at (cx, cy).
func describe(g *image.Gray, cx, cy int, angle float64) Descriptor {
	s, c := math.Sincos(angle)
	at := func(x, y float64) uint8 {
		rx := int(math.Round(c*x - s*y))
		ry := int(math.Round(s*x + c*y))
		return g.Pix[(cy+ry)*g.Stride+cx+rx]
	}
	var d Descriptor
	for i, p := range briefPattern {
		if at(p[0], p[1]) < at(p[2], p[3]) {
			d[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return d
}
