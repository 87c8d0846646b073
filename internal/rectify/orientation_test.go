package rectify

import (
	"testing"

	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// rotateQuarter turns points by k quarter turns clockwise on screen around the origin.
func rotateQuarter(c [4]utils.Point, k int) [4]utils.Point {
	out := c
	for range k {
		for i, p := range out {
			out[i] = utils.Point{X: -p.Y, Y: p.X}
		}
	}
	return out
}

func TestClassify_QuarterTurns(t *testing.T) {
	// Slightly irregular quad centered on the origin, listed down the left edge first.
	base := [4]utils.Point{{X: -70, Y: -95}, {X: -68, Y: 95}, {X: 70, Y: 93}, {X: 68, Y: -97}}
	const w, h = 200.0, 300.0

	tests := []struct {
		turns       int
		orientation Orientation
		mirrored    bool
		dst         [4]utils.Point
	}{
		{0, Vertical, false, [4]utils.Point{{X: 0, Y: 0}, {X: 0, Y: h}, {X: w, Y: h}, {X: w, Y: 0}}},
		{1, UpsideDown, false, [4]utils.Point{{X: w, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: h}, {X: w, Y: h}}},
		{2, VerticalUpsideDown, false, [4]utils.Point{{X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}, {X: 0, Y: 0}}},
		{3, Horizontal, true, [4]utils.Point{{X: w, Y: h}, {X: w, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: h}}},
	}

	for _, tt := range tests {
		t.Run(tt.orientation.String(), func(t *testing.T) {
			c := rotateQuarter(base, tt.turns)
			o, mirrored := classify(c)
			assert.Equal(t, tt.orientation, o)
			assert.Equal(t, tt.mirrored, mirrored)
			assert.Equal(t, tt.dst, destinationCorners(o, mirrored, w, h))
		})
	}
}

func TestDestinationTable_MirroredRows(t *testing.T) {
	const w, h = 10.0, 20.0
	assert.Equal(t,
		[4]utils.Point{{X: w, Y: h}, {X: 0, Y: h}, {X: 0, Y: 0}, {X: w, Y: 0}},
		destinationCorners(Horizontal, false, w, h))
	assert.Equal(t,
		[4]utils.Point{{X: 0, Y: h}, {X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}},
		destinationCorners(VerticalUpsideDown, true, w, h))
	for _, o := range []Orientation{Horizontal, Vertical, UpsideDown} {
		assert.Equal(t,
			[4]utils.Point{{X: w, Y: h}, {X: w, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: h}},
			destinationCorners(o, true, w, h), o.String())
	}
}

// TestDestinationCorners_Permutation checks every table entry uses each canvas corner once.
func TestDestinationCorners_Permutation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("destination corners are a permutation of the canvas corners", prop.ForAll(
		func(o int, mirrored bool, w, h float64) bool {
			dst := destinationCorners(Orientation(o), mirrored, w, h)
			want := map[utils.Point]int{{X: 0, Y: 0}: 0, {X: w, Y: 0}: 0, {X: w, Y: h}: 0, {X: 0, Y: h}: 0}
			for _, p := range dst {
				n, ok := want[p]
				if !ok || n > 0 {
					return false
				}
				want[p] = 1
			}
			return true
		},
		gen.IntRange(0, 3),
		gen.Bool(),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
	))

	properties.TestingRun(t)
}

func TestOrderCorners(t *testing.T) {
	// Clockwise input starting at the bottom-right corner.
	in := []utils.Point{{X: 150, Y: 198}, {X: 12, Y: 200}, {X: 10, Y: 10}, {X: 148, Y: 8}}
	got := orderCorners(in)
	assert.Equal(t, utils.Point{X: 148, Y: 8}, got[0], "topmost corner first")
	assert.Equal(t, utils.Point{X: 10, Y: 10}, got[1])
	assert.Equal(t, utils.Point{X: 12, Y: 200}, got[2])
	assert.Equal(t, utils.Point{X: 150, Y: 198}, got[3])
	assert.Less(t, utils.SignedArea(got[:]), 0.0)
}

func TestEdgeAngle(t *testing.T) {
	o := utils.Point{}
	assert.InDelta(t, 0, edgeAngle(o, utils.Point{X: 1}), 1e-9)
	assert.InDelta(t, 90, edgeAngle(o, utils.Point{Y: 1}), 1e-9)
	assert.InDelta(t, -90, edgeAngle(o, utils.Point{Y: -1}), 1e-9)
	assert.InDelta(t, 180, edgeAngle(o, utils.Point{X: -1}), 1e-9)
}

func TestFitAspect(t *testing.T) {
	// A 100x200 portrait outline read down its left edge.
	portrait := [4]utils.Point{{X: 0, Y: 0}, {X: 0, Y: 200}, {X: 100, Y: 200}, {X: 100, Y: 0}}
	landscape := [4]utils.Point{{X: 0, Y: 0}, {X: 0, Y: 100}, {X: 200, Y: 100}, {X: 200, Y: 0}}

	tests := []struct {
		name    string
		corners [4]utils.Point
		w, h    float64
		turned  bool
	}{
		{"portrait on portrait", portrait, 50, 80, false},
		{"landscape on landscape", landscape, 80, 50, false},
		{"landscape on portrait", landscape, 50, 80, true},
		{"portrait on landscape", portrait, 80, 50, true},
		{"square canvas", landscape, 60, 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := destinationCorners(Vertical, false, tt.w, tt.h)
			dst, turned := fitAspect(tt.corners, table)
			assert.Equal(t, tt.turned, turned)
			if !turned {
				assert.Equal(t, table, dst)
				return
			}
			// The outline's top-right corner becomes the canvas top-left.
			assert.Equal(t, utils.Point{X: 0, Y: 0}, dst[3])
			assert.Equal(t, [4]utils.Point{table[1], table[2], table[3], table[0]}, dst)
		})
	}
}
