package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleImage(t *testing.T) {
	img := NewCanvas(200, 100, color.White)

	got, err := ScaleImage(img, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Bounds().Dx())
	assert.Equal(t, 200, got.Bounds().Dy())

	same, err := ScaleImage(img, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestScaleImage_Truncates(t *testing.T) {
	img := NewCanvas(10, 10, color.White)
	got, err := ScaleImage(img, 0.55, 0.99)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Bounds().Dx())
	assert.Equal(t, 9, got.Bounds().Dy())
}

func TestScaleImage_ReachesTargetSize(t *testing.T) {
	// 1.0/49*49 is just below 1 in float64.
	assert.Equal(t, 1, scaledSize(49, 1.0/49))
	img := NewCanvas(49, 240, color.White)
	got, err := ScaleImage(img, 1.0/49, 200.0/240)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Bounds().Dx())
	assert.Equal(t, 200, got.Bounds().Dy())

	for n := 1; n <= 500; n++ {
		for _, target := range []int{1, 7, 199, 200, 1000} {
			require.Equal(t, target, scaledSize(n, float64(target)/float64(n)), "n=%d target=%d", n, target)
		}
	}
}

func TestScaleImage_Invalid(t *testing.T) {
	img := NewCanvas(10, 10, color.White)
	_, err := ScaleImage(img, 0, 1)
	require.Error(t, err)
	_, err = ScaleImage(img, 0.01, 1)
	require.Error(t, err)
	_, err = ScaleImage(nil, 1, 1)
	require.Error(t, err)
}

func TestToGray_OffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 15, 10))
	for y := 5; y < 10; y++ {
		for x := 5; x < 15; x++ {
			src.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	g := ToGray(src)
	assert.Equal(t, image.Rect(0, 0, 10, 5), g.Bounds())
	assert.Equal(t, uint8(200), g.GrayAt(0, 0).Y)
}

func TestEqualizeHistogram_StretchesRange(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 1))
	g.Pix = []uint8{100, 110, 120, 130}
	out := EqualizeHistogram(g)
	assert.Equal(t, uint8(255), out.Pix[3])
	assert.Less(t, out.Pix[0], out.Pix[1])
	assert.Less(t, out.Pix[2], out.Pix[3])
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(NewCanvas(3, 3, color.Black))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
