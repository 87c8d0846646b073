package rectify

import (
	"testing"

	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectMask(w, h int, rects ...[4]int) []bool {
	mask := make([]bool, w*h)
	for _, r := range rects {
		for y := r[1]; y < r[3]; y++ {
			for x := r[0]; x < r[2]; x++ {
				mask[y*w+x] = true
			}
		}
	}
	return mask
}

func TestLabelComponents(t *testing.T) {
	mask := rectMask(30, 20, [4]int{2, 2, 8, 8}, [4]int{15, 5, 25, 15})
	// Diagonal touch joins regions under 8-connectivity.
	mask[8*30+8] = true

	labels, comps := labelComponents(mask, 30, 20)
	require.Len(t, comps, 2)
	assert.Equal(t, labels[2*30+2], labels[8*30+8])
	assert.Equal(t, 37, comps[0].count)
	assert.Equal(t, 100, comps[1].count)
}

func TestTraceOuterContour_Rectangle(t *testing.T) {
	mask := rectMask(20, 20, [4]int{3, 4, 13, 10})
	labels, comps := labelComponents(mask, 20, 20)
	require.Len(t, comps, 1)

	contour := traceOuterContour(labels, 20, 20, comps[0])
	require.Len(t, contour, 4)
	assert.Equal(t, utils.Point{X: 3, Y: 4}, contour[0])
	assert.InDelta(t, 9*5, utils.PolygonArea(contour), 1e-9)
}

func TestTraceOuterContour_SinglePixel(t *testing.T) {
	mask := rectMask(5, 5, [4]int{2, 2, 3, 3})
	labels, comps := labelComponents(mask, 5, 5)
	contour := traceOuterContour(labels, 5, 5, comps[0])
	assert.Equal(t, []utils.Point{{X: 2, Y: 2}}, contour)
}

func TestLargestContour(t *testing.T) {
	mask := rectMask(60, 40, [4]int{1, 1, 10, 10}, [4]int{20, 5, 55, 35})
	contour, area, err := largestContour(mask, 60, 40)
	require.NoError(t, err)
	assert.InDelta(t, 34*29, area, 1e-9)
	assert.Equal(t, utils.Point{X: 20, Y: 5}, contour[0])
}

func TestLargestContour_Empty(t *testing.T) {
	_, _, err := largestContour(make([]bool, 16), 4, 4)
	assert.ErrorIs(t, err, ErrNoPageBoundaryFound)
}
