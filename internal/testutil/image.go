package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Point is a float image coordinate.
type Point struct {
	X, Y float64
}

// PageConfig describes a synthetic photographed page: a light quadrilateral
// on a dark background.
type PageConfig struct {
	Width, Height int
	// Corners of the page in physical order: top-left, top-right,
	// bottom-right, bottom-left.
	Corners    [4]Point
	Background color.Color
	Paper      color.Color
	// Marker draws a dark block near the physical top-left of the page.
	Marker bool
}

// GeneratePage renders cfg into an RGBA image.
func GeneratePage(cfg PageConfig) *image.RGBA {
	if cfg.Background == nil {
		cfg.Background = color.Black
	}
	if cfg.Paper == nil {
		cfg.Paper = color.White
	}
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	c := cfg.Corners
	for y := range cfg.Height {
		for x := range cfg.Width {
			p := Point{float64(x), float64(y)}
			if !insideQuad(c, p) {
				continue
			}
			img.Set(x, y, cfg.Paper)
		}
	}

	if cfg.Marker {
		for v := 0.10; v <= 0.30; v += 0.002 {
			for u := 0.10; u <= 0.35; u += 0.002 {
				p := PagePoint(c, u, v)
				img.Set(int(p.X), int(p.Y), color.Black)
			}
		}
	}
	return img
}

// PagePoint maps page-relative (u, v) in [0,1]^2 onto the quadrilateral.
func PagePoint(c [4]Point, u, v float64) Point {
	top := Point{c[0].X + (c[1].X-c[0].X)*u, c[0].Y + (c[1].Y-c[0].Y)*u}
	bot := Point{c[3].X + (c[2].X-c[3].X)*u, c[3].Y + (c[2].Y-c[3].Y)*u}
	return Point{top.X + (bot.X-top.X)*v, top.Y + (bot.Y-top.Y)*v}
}

func insideQuad(c [4]Point, p Point) bool {
	sign := 0.0
	for i := range 4 {
		a, b := c[i], c[(i+1)%4]
		cr := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		if cr == 0 {
			continue
		}
		if sign == 0 {
			sign = cr
		} else if (sign > 0) != (cr > 0) {
			return false
		}
	}
	return true
}

// FormLabels are drawn by GenerateFormImage; seeds pick different subsets
// and placements.
var FormLabels = []string{
	"Reservation Number", "Clinic", "Date", "MRN", "Patient Name",
	"Doctor", "Signature", "Department", "Phone", "Address", "Total",
}

// GenerateFormImage renders a deterministic synthetic form: boxed fields with
// labels laid out from seed.
func GenerateFormImage(seed int64, width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	rows := 6 + rng.Intn(4)
	rowH := height / (rows + 1)
	for r := range rows {
		y := rowH/2 + r*rowH
		x := 10 + rng.Intn(width/4)
		label := FormLabels[rng.Intn(len(FormLabels))]
		drawer.Dot = fixed.P(x, y+10)
		drawer.DrawString(fmt.Sprintf("%s:", label))

		bx := x + font.MeasureString(basicfont.Face7x13, label).Ceil() + 20
		bw := 40 + rng.Intn(max(width-bx-50, 1))
		box := image.Rect(bx, y-2, min(bx+bw, width-10), y+rowH/2)
		strokeRect(img, box, 2)
		// Hatching gives the box interior some texture.
		for hx := box.Min.X + 6; hx < box.Max.X-6; hx += 9 + rng.Intn(6) {
			fillRect(img, image.Rect(hx, box.Min.Y+4, hx+2, box.Min.Y+4+rng.Intn(max(box.Dy()-6, 1))))
		}
	}
	strokeRect(img, image.Rect(4, 4, width-4, height-4), 3)
	return img
}

// GenerateTextImage renders lines of text in black on white.
func GenerateTextImage(lines []string, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	lineHeight := face.Metrics().Height.Ceil() + 4
	for i, line := range lines {
		drawer.Dot = fixed.P(8, (i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// SaveImage saves img to dir/name using the encoder matching name's extension.
func SaveImage(t *testing.T, img image.Image, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
	return path
}

func strokeRect(img *image.RGBA, r image.Rectangle, t int) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t))
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y))
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y))
	fillRect(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y))
}

func fillRect(img *image.RGBA, r image.Rectangle) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{color.Black}, image.Point{}, draw.Src)
}
