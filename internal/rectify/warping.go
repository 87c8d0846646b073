package rectify

import (
	"image"

	"github.com/disintegration/imaging"
)

// warpPerspective renders a dstW x dstH canvas by pulling every destination
// pixel back through inv and sampling src bilinearly. Pixels that map outside
// src are opaque black.
func warpPerspective(src image.Image, inv Matrix, dstW, dstH int) *image.NRGBA {
	s := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	for y := range dstH {
		for x := range dstW {
			sx, sy := inv.Apply(float64(x), float64(y))
			off := y*out.Stride + x*4
			bilinearSample(s, sx, sy, out.Pix[off:off+4])
		}
	}
	return out
}

func bilinearSample(src *image.NRGBA, x, y float64, dst []uint8) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 255
		return
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Pix[y0*src.Stride+x0*4:]
	p10 := src.Pix[y0*src.Stride+x1*4:]
	p01 := src.Pix[y1*src.Stride+x0*4:]
	p11 := src.Pix[y1*src.Stride+x1*4:]
	for c := range 4 {
		top := lerp(float64(p00[c]), float64(p10[c]), fx)
		bot := lerp(float64(p01[c]), float64(p11[c]), fx)
		dst[c] = uint8(lerp(top, bot, fy) + 0.5)
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
