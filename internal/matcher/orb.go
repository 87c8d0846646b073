package matcher

import (
	"errors"
	"image"
	"math"
	"math/bits"
	"sort"

	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/disintegration/imaging"
)

// ORBOptions configures the pure Go oriented-FAST/rotated-BRIEF backend.
type ORBOptions struct {
	Features      int     // descriptors kept per image
	Levels        int     // pyramid levels
	ScaleFactor   float64 // size ratio between pyramid levels
	FastThreshold int     // FAST intensity threshold
	MaxDistance   int     // flat Hamming cutoff for an accepted match
	Ratio         float64 // optional nearest/second-nearest ratio test; 0 disables
	MaxDimension  int     // larger images are downscaled first
}

// DefaultORBOptions mirrors the classic binary-descriptor setup: 500
// features, 8 levels at 1.2 and a flat distance cutoff of 20.
func DefaultORBOptions() ORBOptions {
	return ORBOptions{
		Features:      500,
		Levels:        8,
		ScaleFactor:   1.2,
		FastThreshold: 20,
		MaxDistance:   20,
		MaxDimension:  1200,
	}
}

// Keypoint is a detected corner in original image coordinates.
type Keypoint struct {
	X, Y  float64
	Level int
	Angle float64 // radians
	Score float64
}

// Descriptor is a 256-bit binary descriptor.
type Descriptor [4]uint64

// Hamming returns the number of differing bits.
func Hamming(a, b Descriptor) int {
	return bits.OnesCount64(a[0]^b[0]) + bits.OnesCount64(a[1]^b[1]) +
		bits.OnesCount64(a[2]^b[2]) + bits.OnesCount64(a[3]^b[3])
}

// ORBFeatures holds keypoints and their descriptors.
type ORBFeatures struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

func (f *ORBFeatures) Len() int     { return len(f.Descriptors) }
func (f *ORBFeatures) Close() error { return nil }

// ORB is a deterministic, dependency-free binary feature backend.
type ORB struct {
	opts ORBOptions
}

// NewORB creates the pure Go backend; zero option fields take defaults.
func NewORB(opts ORBOptions) *ORB {
	d := DefaultORBOptions()
	if opts.Features <= 0 {
		opts.Features = d.Features
	}
	if opts.Levels <= 0 {
		opts.Levels = d.Levels
	}
	if opts.ScaleFactor <= 1 {
		opts.ScaleFactor = d.ScaleFactor
	}
	if opts.FastThreshold <= 0 {
		opts.FastThreshold = d.FastThreshold
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = d.MaxDistance
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = d.MaxDimension
	}
	return &ORB{opts: opts}
}

func (o *ORB) Name() string { return "orb" }

// Describe detects keypoints on an image pyramid and computes their descriptors.
func (o *ORB) Describe(img *image.Gray) (Features, error) {
	if img == nil || img.Rect.Empty() {
		return nil, errors.New("orb: empty image")
	}
	base := image.Image(img)
	scale := 1.0
	if m := max(img.Rect.Dx(), img.Rect.Dy()); m > o.opts.MaxDimension {
		scale = float64(m) / float64(o.opts.MaxDimension)
		base = imaging.Resize(img, int(float64(img.Rect.Dx())/scale), int(float64(img.Rect.Dy())/scale), imaging.Linear)
	}

	levels := o.pyramid(base)
	totalArea := 0
	for _, l := range levels {
		totalArea += l.Rect.Dx() * l.Rect.Dy()
	}

	out := &ORBFeatures{}
	for i, lvl := range levels {
		quota := int(math.Round(float64(o.opts.Features) * float64(lvl.Rect.Dx()*lvl.Rect.Dy()) / float64(totalArea)))
		if quota == 0 {
			continue
		}
		kps := detectCorners(lvl, o.opts.FastThreshold, quota)
		if len(kps) == 0 {
			continue
		}
		smooth := utils.ToGray(imaging.Blur(lvl, 1.2))
		levelScale := scale * math.Pow(o.opts.ScaleFactor, float64(i))
		for _, kp := range kps {
			angle := intensityAngle(lvl, kp.x, kp.y)
			out.Descriptors = append(out.Descriptors, describe(smooth, kp.x, kp.y, angle))
			out.Keypoints = append(out.Keypoints, Keypoint{
				X:     float64(kp.x) * levelScale,
				Y:     float64(kp.y) * levelScale,
				Level: i,
				Angle: angle,
				Score: kp.score,
			})
		}
	}
	return out, nil
}

func (o *ORB) pyramid(base image.Image) []*image.Gray {
	levels := []*image.Gray{utils.ToGray(base)}
	b := base.Bounds()
	for i := 1; i < o.opts.Levels; i++ {
		s := math.Pow(o.opts.ScaleFactor, float64(i))
		w, h := int(float64(b.Dx())/s), int(float64(b.Dy())/s)
		if w < 2*patchBorder+1 || h < 2*patchBorder+1 {
			break
		}
		levels = append(levels, utils.ToGray(imaging.Resize(base, w, h, imaging.Linear)))
	}
	return levels
}

// Accepted counts template descriptors whose nearest target descriptor is
// within MaxDistance and, if Ratio is set, clearly nearer than the second.
func (o *ORB) Accepted(template, target Features) (int, error) {
	t, ok1 := template.(*ORBFeatures)
	q, ok2 := target.(*ORBFeatures)
	if !ok1 || !ok2 {
		return 0, errors.New("orb: features from another backend")
	}
	accepted := 0
	for _, d := range t.Descriptors {
		best, second := math.MaxInt, math.MaxInt
		for _, c := range q.Descriptors {
			dist := Hamming(d, c)
			if dist < best {
				best, second = dist, best
			} else if dist < second {
				second = dist
			}
		}
		if best > o.opts.MaxDistance {
			continue
		}
		if o.opts.Ratio > 0 && second != math.MaxInt && float64(best) >= o.opts.Ratio*float64(second) {
			continue
		}
		accepted++
	}
	return accepted, nil
}

type corner struct {
	x, y  int
	score float64
}

// sortCorners orders by score, then position, for reproducible output.
func sortCorners(cs []corner) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].score != cs[j].score {
			return cs[i].score > cs[j].score
		}
		if cs[i].y != cs[j].y {
			return cs[i].y < cs[j].y
		}
		return cs[i].x < cs[j].x
	})
}
