package dataset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecodeImage decodes a PNG or JPEG payload, converts it to grayscale and
// resizes it to width x height with a linear filter. The result holds the
// gray intensities in [0, 1], row by row.
func DecodeImage(raw []byte, width, height int) (*mat.VecDense, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("dataset: invalid grid %dx%d", width, height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "dataset: decode image")
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("dataset: empty image")
	}
	gray := imaging.Resize(imaging.Grayscale(img), width, height, imaging.Linear)

	// Grayscale leaves R = G = B, so the red channel carries the intensity.
	features := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+4*width]
		for x := 0; x < width; x++ {
			features[y*width+x] = float64(row[4*x]) / 255
		}
	}
	return mat.NewVecDense(len(features), features), nil
}
