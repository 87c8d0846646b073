package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

func dumpMaskPNG(dir string, mask []bool, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, on := range mask {
		if on {
			img.Pix[i] = 255
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("rect_mask_%d.png", time.Now().UnixNano()))
	return utils.SaveImage(path, img)
}

func dumpOverlayPNG(dir string, src image.Image, quad []utils.Point) error {
	b := src.Bounds()
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, src, b.Min, draw.Src)
	utils.DrawPolygon(canvas, quad, color.RGBA{255, 0, 0, 255}, 3)
	for i, p := range quad {
		// Larger marks for earlier corners make the ordering visible.
		r := 4 * (4 - i)
		utils.DrawRect(canvas, image.Rect(int(p.X)-r, int(p.Y)-r, int(p.X)+r, int(p.Y)+r), color.RGBA{0, 160, 0, 255}, 2)
	}
	path := filepath.Join(dir, fmt.Sprintf("rect_overlay_%d.png", time.Now().UnixNano()))
	return utils.SaveImage(path, canvas)
}
