package matcher

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/formflow/internal/testutil"
	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareImage(w, h int, sq image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := sq.Min.Y; y < sq.Max.Y; y++ {
		for x := sq.Min.X; x < sq.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return g
}

func TestHamming(t *testing.T) {
	a := Descriptor{0, 0, 0, 0}
	b := Descriptor{1, 3, 0, 1 << 63}
	assert.Equal(t, 0, Hamming(a, a))
	assert.Equal(t, 4, Hamming(a, b))
	assert.Equal(t, 256, Hamming(a, Descriptor{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}))
}

func TestHamming_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	desc := gen.SliceOfN(4, gen.UInt64()).Map(func(v []uint64) Descriptor {
		return Descriptor{v[0], v[1], v[2], v[3]}
	})

	properties.Property("symmetric and bounded", prop.ForAll(
		func(a, b Descriptor) bool {
			d := Hamming(a, b)
			return d == Hamming(b, a) && d >= 0 && d <= 256 && Hamming(a, a) == 0
		},
		desc, desc,
	))
	properties.Property("triangle inequality", prop.ForAll(
		func(a, b, c Descriptor) bool {
			return Hamming(a, c) <= Hamming(a, b)+Hamming(b, c)
		},
		desc, desc, desc,
	))

	properties.TestingRun(t)
}

func TestIsFastCorner(t *testing.T) {
	g := squareImage(80, 80, image.Rect(30, 30, 60, 60))
	assert.True(t, isFastCorner(g, 30, 30, 20), "square corner")
	assert.False(t, isFastCorner(g, 45, 30, 20), "straight edge")
	assert.False(t, isFastCorner(g, 45, 45, 20), "flat interior")
}

func TestDetectCorners_Square(t *testing.T) {
	g := squareImage(100, 100, image.Rect(30, 30, 70, 70))
	cs := detectCorners(g, 20, 10)
	require.NotEmpty(t, cs)
	for _, c := range cs {
		nearCorner := false
		for _, p := range []image.Point{{30, 30}, {69, 30}, {30, 69}, {69, 69}} {
			if utils.Distance(utils.Point{X: float64(c.x), Y: float64(c.y)}, utils.Point{X: float64(p.X), Y: float64(p.Y)}) <= 3 {
				nearCorner = true
			}
		}
		assert.True(t, nearCorner, "corner at %d,%d", c.x, c.y)
	}
	assert.Empty(t, detectCorners(image.NewGray(image.Rect(0, 0, 20, 20)), 20, 10), "too small for patches")
}

func TestORB_DescribeDeterministic(t *testing.T) {
	img := utils.ToGray(testutil.GenerateFormImage(7, 400, 300))
	orb := NewORB(DefaultORBOptions())

	a, err := orb.Describe(img)
	require.NoError(t, err)
	b, err := orb.Describe(img)
	require.NoError(t, err)

	fa, fb := a.(*ORBFeatures), b.(*ORBFeatures)
	require.NotZero(t, fa.Len())
	assert.LessOrEqual(t, fa.Len(), 500+8)
	assert.Equal(t, fa.Descriptors, fb.Descriptors)
	assert.Equal(t, fa.Keypoints, fb.Keypoints)
}

func TestORB_DescribeBlank(t *testing.T) {
	f, err := NewORB(ORBOptions{}).Describe(image.NewGray(image.Rect(0, 0, 200, 200)))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())

	_, err = NewORB(ORBOptions{}).Describe(nil)
	assert.Error(t, err)
}

func TestORB_DownscalesLargeImages(t *testing.T) {
	orb := NewORB(ORBOptions{MaxDimension: 200})
	f, err := orb.Describe(utils.ToGray(testutil.GenerateFormImage(3, 400, 300)))
	require.NoError(t, err)
	for _, kp := range f.(*ORBFeatures).Keypoints {
		assert.Less(t, kp.X, 400.0)
		assert.Less(t, kp.Y, 300.0)
	}
}

func TestORB_AcceptedIdentical(t *testing.T) {
	orb := NewORB(DefaultORBOptions())
	f, err := orb.Describe(utils.ToGray(testutil.GenerateFormImage(9, 400, 300)))
	require.NoError(t, err)

	n, err := orb.Accepted(f, f)
	require.NoError(t, err)
	assert.Equal(t, f.Len(), n)
}

func TestORB_RatioTest(t *testing.T) {
	d := Descriptor{0xFF}
	near := Descriptor{0xFE} // distance 1
	alsoNear := Descriptor{0xFC}
	tmpl := &ORBFeatures{Descriptors: []Descriptor{d}}
	target := &ORBFeatures{Descriptors: []Descriptor{near, alsoNear}}

	n, err := NewORB(ORBOptions{}).Accepted(tmpl, target)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "flat cutoff only")

	n, err = NewORB(ORBOptions{Ratio: 0.4}).Accepted(tmpl, target)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "1 is not below 0.4*2")
}

type otherFeatures struct{}

func (otherFeatures) Len() int     { return 1 }
func (otherFeatures) Close() error { return nil }

func TestORB_AcceptedForeignFeatures(t *testing.T) {
	_, err := NewORB(ORBOptions{}).Accepted(otherFeatures{}, &ORBFeatures{})
	assert.Error(t, err)
}
