// Package rectify detects the outline of a photographed or scanned page and
// warps it onto an upright rectangular canvas.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Corrector rectifies skewed, rotated or perspective-distorted page images.
// It keeps no state between calls and is safe for concurrent use.
type Corrector struct {
	cfg Config
}

// Result is a corrected page together with the geometry that produced it.
type Result struct {
	Image       image.Image
	Corners     [4]utils.Point // detected page corners, relative to the source's top-left
	Destination [4]utils.Point // canvas corner each detected corner was mapped to
	Orientation Orientation
	Mirrored    bool
	QuarterTurn bool   // outline was turned a quarter to fit the canvas aspect
	Transform   Matrix // source -> canvas
}

// New creates a Corrector.
func New(cfg Config) *Corrector {
	return &Corrector{cfg: cfg.withDefaults()}
}

// Correct rectifies img onto the configured canvas, or onto a canvas the size
// of img when none is configured.
func (c *Corrector) Correct(img image.Image) (*Result, error) {
	return c.CorrectTo(img, image.Pt(c.cfg.Width, c.cfg.Height))
}

// CorrectTo rectifies img onto a canvas of the given size. Zero dimensions fall
// back to the size of img.
func (c *Corrector) CorrectTo(img image.Image, size image.Point) (*Result, error) {
	if img == nil {
		return nil, errors.New("rectify: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("rectify: empty image")
	}
	if size.X <= 0 {
		size.X = b.Dx()
	}
	if size.Y <= 0 {
		size.Y = b.Dy()
	}

	corners, err := c.DetectCorners(img)
	if err != nil {
		return nil, err
	}

	orientation, mirrored := classify(corners)
	dst, turned := fitAspect(corners, destinationCorners(orientation, mirrored, float64(size.X), float64(size.Y)))

	m, ok := perspectiveTransform(corners, dst)
	if !ok || !m.Valid() {
		return nil, fmt.Errorf("%w: degenerate corners %v", ErrInvalidTransformMatrix, corners)
	}
	inv, ok := m.Inverse()
	if !ok {
		return nil, fmt.Errorf("%w: transform is not invertible", ErrInvalidTransformMatrix)
	}

	out := warpPerspective(img, inv, size.X, size.Y)

	slog.Debug("Page corrected",
		"orientation", orientation.String(),
		"mirrored", mirrored,
		"quarter_turn", turned,
		"source_size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"canvas_size", fmt.Sprintf("%dx%d", size.X, size.Y))

	if c.cfg.DebugDir != "" {
		if err := dumpOverlayPNG(c.cfg.DebugDir, img, corners[:]); err != nil {
			slog.Warn("Failed to write rectify overlay", "error", err)
		}
	}

	return &Result{
		Image:       out,
		Corners:     corners,
		Destination: dst,
		Orientation: orientation,
		Mirrored:    mirrored,
		QuarterTurn: turned,
		Transform:   m,
	}, nil
}

// DetectCorners finds the four page corners of img, relative to its top-left
// pixel and ordered as described by orderCorners.
func (c *Corrector) DetectCorners(img image.Image) ([4]utils.Point, error) {
	gray := utils.ToGray(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()

	mask := binarize(gray, otsuThreshold(gray))
	padded, pw, ph := padMask(mask, w, h, c.cfg.Margin)
	closed := closeMask(padded, pw, ph, ellipseKernel(c.cfg.KernelSize))
	mask = unpadMask(closed, pw, ph, c.cfg.Margin)

	if c.cfg.DebugDir != "" {
		if err := dumpMaskPNG(c.cfg.DebugDir, mask, w, h); err != nil {
			slog.Warn("Failed to write rectify mask", "error", err)
		}
	}

	contour, _, err := largestContour(mask, w, h)
	if err != nil {
		return [4]utils.Point{}, err
	}

	eps := c.cfg.EpsilonFactor * utils.ArcLength(contour, true)
	quad := utils.ApproxClosedPolygon(contour, eps)
	if len(quad) != 4 {
		return [4]utils.Point{}, fmt.Errorf("%w: expected 4 corners, got %d", ErrInvalidPolygonApproximation, len(quad))
	}
	if utils.PolygonArea(quad) == 0 {
		return [4]utils.Point{}, fmt.Errorf("%w: corners are collinear", ErrInvalidPolygonApproximation)
	}
	return orderCorners(quad), nil
}
