// Package model holds the fully-connected sigmoid network: its parameters,
// the forward pass, backpropagation and the mini-batch gradient step.
package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidLayers is returned for a malformed layer-size vector.
	ErrInvalidLayers = errors.New("model: invalid layer sizes")
	// ErrDimension is wrapped by every DimensionError.
	ErrDimension = errors.New("model: dimension mismatch")
	// ErrEmptyData is returned when a batch or dataset has no samples.
	ErrEmptyData = errors.New("model: empty data")
	// ErrInvalidHyperparameter is returned for a non-positive learning rate,
	// batch size or epoch count.
	ErrInvalidHyperparameter = errors.New("model: invalid hyperparameter")
)

// DimensionError reports a vector whose length disagrees with the network.
type DimensionError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimension }

// Sample is a training pair whose Target is a one-hot vector.
type Sample struct {
	Input  *mat.VecDense
	Target *mat.VecDense
}

// LabeledSample is an evaluation pair whose Label is a class index.
type LabeledSample struct {
	Input *mat.VecDense
	Label int
}

// Model defines what the training loop needs from a network.
type Model interface {
	UpdateMiniBatch(batch []Sample, learningRate float64) error
	Evaluate(data []LabeledSample) (int, error)
}

// Predictor maps an input vector to an output activation vector.
type Predictor interface {
	Feedforward(x *mat.VecDense) (*mat.VecDense, error)
}

// Evaluate counts the samples whose arg-max prediction equals their label.
func Evaluate(p Predictor, data []LabeledSample) (int, error) {
	if len(data) == 0 {
		return 0, errors.Wrap(ErrEmptyData, "evaluate")
	}
	correct := 0
	for i, s := range data {
		out, err := p.Feedforward(s.Input)
		if err != nil {
			return 0, errors.Wrapf(err, "evaluate sample %d", i)
		}
		if ArgMax(out) == s.Label {
			correct++
		}
	}
	return correct, nil
}

// ArgMax returns the index of the largest component of v. Ties resolve to
// the lowest index.
func ArgMax(v mat.Vector) int {
	return floats.MaxIdx(mat.Col(nil, 0, v))
}

// OneHot returns a vector of length n with a 1 at index label.
func OneHot(label, n int) (*mat.VecDense, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidLayers, "one-hot width %d", n)
	}
	if label < 0 || label >= n {
		return nil, errors.Errorf("model: label %d out of range [0, %d)", label, n)
	}
	v := mat.NewVecDense(n, nil)
	v.SetVec(label, 1)
	return v, nil
}
