package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ScaleImage resizes img by independent horizontal and vertical factors.
// The target size is truncated toward zero, mirroring integer pixel sizes.
func ScaleImage(img image.Image, fx, fy float64) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "scale", Err: errors.New("input image is nil")}
	}
	if fx <= 0 || fy <= 0 || math.IsNaN(fx) || math.IsNaN(fy) || math.IsInf(fx, 0) || math.IsInf(fy, 0) {
		return nil, &ImageProcessingError{Operation: "scale", Err: fmt.Errorf("invalid scale factors %.4f x %.4f", fx, fy)}
	}
	b := img.Bounds()
	w := scaledSize(b.Dx(), fx)
	h := scaledSize(b.Dy(), fy)
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "scale", Err: fmt.Errorf("scaled size %dx%d is empty", w, h)}
	}
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, w, h, imaging.Linear), nil
}

// scaledSize truncates n*f, tolerating the rounding error of factors built as
// target/n.
func scaledSize(n int, f float64) int {
	return int(math.Floor(float64(n)*f + 1e-6))
}

// ToGray converts any image to an 8-bit grayscale image anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// EqualizeHistogram spreads the gray-level histogram of img over the full range.
func EqualizeHistogram(img image.Image) *image.Gray {
	g := ToGray(img)
	total := len(g.Pix)
	if total == 0 {
		return g
	}
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	var lut [256]uint8
	cdf := 0
	for i := range 256 {
		cdf += hist[i]
		lut[i] = uint8(float64(cdf) / float64(total) * 255)
	}
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// NewCanvas returns an opaque image of the given size filled with col.
func NewCanvas(w, h int, col color.Color) *image.NRGBA {
	return imaging.New(w, h, col)
}
