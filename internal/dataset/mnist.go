package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

const (
	trainImagesFilename = "train-images-idx3-ubyte.gz"
	trainLabelsFilename = "train-labels-idx1-ubyte.gz"
	testImagesFilename  = "t10k-images-idx3-ubyte.gz"
	testLabelsFilename  = "t10k-labels-idx1-ubyte.gz"

	imageMagic = 0x00000803
	labelMagic = 0x00000801

	// maxImagePixels bounds width*height read from an image file header.
	maxImagePixels = 1 << 24

	// MNISTClasses is the number of digit classes.
	MNISTClasses = 10
	// MNISTValidationSize is the number of training images held out for
	// validation, leaving 50,000 for training.
	MNISTValidationSize = 10000
)

var mnistFiles = map[string][2]string{
	"train": {trainImagesFilename, trainLabelsFilename},
	"test":  {testImagesFilename, testLabelsFilename},
}

type imageFileHeader struct {
	Magic     int32
	NumImages int32
	Height    int32
	Width     int32
}

type labelFileHeader struct {
	Magic     int32
	NumLabels int32
}

// LoadMNIST reads the gzipped IDX files of the given mode ("train" or
// "test") from dir. Pixels are scaled to [0, 1] and flattened row by row.
func LoadMNIST(dir, mode string) (*Set, error) {
	files, ok := mnistFiles[mode]
	if !ok {
		return nil, errors.Errorf("mnist: unknown mode %q", mode)
	}
	inputs, err := loadImageFile(filepath.Join(dir, files[0]))
	if err != nil {
		return nil, err
	}
	labels, err := loadLabelFile(filepath.Join(dir, files[1]))
	if err != nil {
		return nil, err
	}
	if len(inputs) != len(labels) {
		return nil, errors.Errorf("mnist: %s has %d images but %d labels", mode, len(inputs), len(labels))
	}
	set := &Set{Inputs: inputs, Labels: labels, Classes: MNISTClasses}
	if err := set.Validate(); err != nil {
		return nil, errors.Wrapf(err, "mnist %s", mode)
	}
	klog.V(1).Infof("mnist: loaded %s %s images from %s", humanize.Comma(int64(set.Len())), mode, dir)
	return set, nil
}

// MNIST loads the training file split into training and validation sets,
// plus the test set.
func MNIST(dir string) (train, validation, test *Set, err error) {
	full, err := LoadMNIST(dir, "train")
	if err != nil {
		return nil, nil, nil, err
	}
	cut := full.Len() - MNISTValidationSize
	if cut <= 0 {
		cut = full.Len()
	}
	train, validation, err = full.Split(cut)
	if err != nil {
		return nil, nil, nil, err
	}
	test, err = LoadMNIST(dir, "test")
	if err != nil {
		return nil, nil, nil, err
	}
	return train, validation, test, nil
}

func openGzip(filename string) (io.Reader, func(), error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "mnist: open %s", filename)
	}
	reader, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "mnist: gzip %s", filename)
	}
	return reader, func() {
		reader.Close()
		f.Close()
	}, nil
}

func loadImageFile(filename string) ([]*mat.VecDense, error) {
	reader, closer, err := openGzip(filename)
	if err != nil {
		return nil, err
	}
	defer closer()

	var header imageFileHeader
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "mnist: read header of %s", filename)
	}
	if header.Magic != imageMagic || header.NumImages < 0 || header.Width <= 0 || header.Height <= 0 {
		return nil, errors.Errorf("mnist: %s is not an image file (magic %#x, %dx%d)",
			filename, header.Magic, header.Width, header.Height)
	}

	if int(header.Width) > maxImagePixels/int(header.Height) {
		return nil, errors.Errorf("mnist: %s has oversized images (%dx%d)", filename, header.Width, header.Height)
	}
	size := int(header.Width) * int(header.Height)
	pixels := make([]byte, size)
	images := make([]*mat.VecDense, header.NumImages)
	for i := range images {
		if _, err := io.ReadFull(reader, pixels); err != nil {
			return nil, errors.Wrapf(err, "mnist: read image %d of %s", i, filename)
		}
		data := make([]float64, size)
		for j, p := range pixels {
			data[j] = float64(p) / 255
		}
		images[i] = mat.NewVecDense(size, data)
	}
	return images, nil
}

func loadLabelFile(filename string) ([]int, error) {
	reader, closer, err := openGzip(filename)
	if err != nil {
		return nil, err
	}
	defer closer()

	var header labelFileHeader
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "mnist: read header of %s", filename)
	}
	if header.Magic != labelMagic || header.NumLabels < 0 {
		return nil, errors.Errorf("mnist: %s is not a label file (magic %#x)", filename, header.Magic)
	}

	raw := make([]byte, header.NumLabels)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, errors.Wrapf(err, "mnist: read labels of %s", filename)
	}
	labels := make([]int, len(raw))
	for i, l := range raw {
		labels[i] = int(l)
	}
	return labels, nil
}
