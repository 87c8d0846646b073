//go:build gocv

// Package cvmatch provides OpenCV feature backends for the matcher: SIFT
// with FLANN ratio matching and ORB with brute-force Hamming matching.
package cvmatch

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/formflow/internal/matcher"
	"gocv.io/x/gocv"
)

// Features wraps an OpenCV descriptor matrix.
type Features struct {
	mat gocv.Mat
}

func (f *Features) Len() int {
	if f.mat.Empty() {
		return 0
	}
	return f.mat.Rows()
}

func (f *Features) Close() error {
	return f.mat.Close()
}

func toMat(img *image.Gray) (gocv.Mat, error) {
	if img == nil || img.Rect.Empty() {
		return gocv.NewMat(), errors.New("cvmatch: empty image")
	}
	if img.Rect.Min != (image.Point{}) {
		c := image.NewGray(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
		for y := range img.Rect.Dy() {
			copy(c.Pix[y*c.Stride:], img.Pix[y*img.Stride:y*img.Stride+img.Rect.Dx()])
		}
		img = c
	}
	return gocv.ImageGrayToMatGray(img)
}

func features(f1, f2 matcher.Features) (*Features, *Features, error) {
	a, ok1 := f1.(*Features)
	b, ok2 := f2.(*Features)
	if !ok1 || !ok2 {
		return nil, nil, errors.New("cvmatch: features from another backend")
	}
	return a, b, nil
}

// SIFT matches scale-invariant descriptors with FLANN, accepting a template
// descriptor when its nearest target neighbor is nearer than Ratio times the
// second nearest.
type SIFT struct {
	Ratio float64
}

// NewSIFT returns a SIFT backend; ratio <= 0 uses 0.7.
func NewSIFT(ratio float64) *SIFT {
	if ratio <= 0 {
		ratio = 0.7
	}
	return &SIFT{Ratio: ratio}
}

func (s *SIFT) Name() string { return "sift" }

func (s *SIFT) Describe(img *image.Gray) (matcher.Features, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	sift := gocv.NewSIFT()
	defer sift.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	_, desc := sift.DetectAndCompute(mat, mask)
	return &Features{mat: desc}, nil
}

func (s *SIFT) Accepted(template, target matcher.Features) (int, error) {
	t, q, err := features(template, target)
	if err != nil {
		return 0, err
	}
	if t.Len() == 0 || q.Len() < 2 {
		return 0, nil
	}
	flann := gocv.NewFlannBasedMatcher()
	defer flann.Close()

	accepted := 0
	for _, m := range flann.KnnMatch(t.mat, q.mat, 2) {
		if len(m) == 2 && m[0].Distance < s.Ratio*m[1].Distance {
			accepted++
		}
	}
	return accepted, nil
}

// ORB matches binary descriptors by brute-force Hamming distance with a
// flat cutoff on the nearest neighbor.
type ORB struct {
	Features    int
	MaxDistance float64
}

// NewORB returns an ORB backend; zero values use 500 features and cutoff 20.
func NewORB(features int, maxDistance float64) *ORB {
	if features <= 0 {
		features = 500
	}
	if maxDistance <= 0 {
		maxDistance = 20
	}
	return &ORB{Features: features, MaxDistance: maxDistance}
}

func (o *ORB) Name() string { return "orb-cv" }

func (o *ORB) Describe(img *image.Gray) (matcher.Features, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	orb := gocv.NewORBWithParams(o.Features, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	_, desc := orb.DetectAndCompute(mat, mask)
	return &Features{mat: desc}, nil
}

func (o *ORB) Accepted(template, target matcher.Features) (int, error) {
	t, q, err := features(template, target)
	if err != nil {
		return 0, err
	}
	if t.Len() == 0 || q.Len() == 0 {
		return 0, nil
	}
	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer bf.Close()

	accepted := 0
	for _, m := range bf.KnnMatch(t.mat, q.mat, 1) {
		if len(m) > 0 && m[0].Distance <= o.MaxDistance {
			accepted++
		}
	}
	return accepted, nil
}

// Validate checks that OpenCV is usable by describing a tiny image.
func Validate() error {
	g := image.NewGray(image.Rect(0, 0, 8, 8))
	mat, err := toMat(g)
	if err != nil {
		return fmt.Errorf("opencv unavailable: %w", err)
	}
	return mat.Close()
}
