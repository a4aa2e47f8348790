package dataset

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	const grid = 16
	img := image.NewGray(image.Rect(0, 0, grid*2, grid*2))
	for y := 0; y < grid*2; y++ {
		for x := 0; x < grid*2; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 255)})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	features, err := DecodeImage(buf.Bytes(), grid, grid)
	require.NoError(t, err)
	require.Equal(t, grid*grid, features.Len())
	for i := 0; i < features.Len(); i++ {
		v := features.AtVec(i)
		assert.True(t, v >= 0 && v <= 1, "feature %d out of range: %f", i, v)
	}
	assert.Less(t, features.AtVec(0), 0.05)
}

func TestDecodeImageAveragesWhenShrinking(t *testing.T) {
	const side = 28
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	features, err := DecodeImage(buf.Bytes(), side/2, side/2)
	require.NoError(t, err)
	require.Equal(t, side*side/4, features.Len())
	for y := 1; y < side/2-1; y++ {
		for x := 1; x < side/2-1; x++ {
			v := features.AtVec(y*side/2 + x)
			assert.Truef(t, v > 0.25 && v < 0.75, "pixel (%d,%d) = %f, want a blend of the checkerboard", x, y, v)
		}
	}
}

func TestDecodeImageScalesToUnitInterval(t *testing.T) {
	x, err := DecodeImage(grayPNG(t, 4, 255), 2, 2)
	require.NoError(t, err)
	for i := 0; i < x.Len(); i++ {
		assert.InDelta(t, 1, x.AtVec(i), 1e-2)
	}
}

func TestDecodeImageErrors(t *testing.T) {
	_, err := DecodeImage([]byte("not an image"), 4, 4)
	assert.Error(t, err)
	_, err = DecodeImage(grayPNG(t, 4, 1), 0, 4)
	assert.Error(t, err)
}
