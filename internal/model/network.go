package model

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Network is a fully-connected feedforward network with sigmoid activations.
//
// Weight matrix i has shape sizes[i+1] x sizes[i] and bias vector i has
// length sizes[i+1]. The scratch buffers used by Backprop and UpdateMiniBatch
// live on the Network, so a Network must not be trained from more than one
// goroutine at a time.
type Network struct {
	sizes   []int
	weights []*mat.Dense
	biases  []*mat.VecDense

	// scratch, sized once in New
	zs          []*mat.VecDense
	activations []*mat.VecDense
	deltas      []*mat.VecDense
	nabla       *Gradient
}

// New builds a network for the given layer sizes, drawing every weight and
// bias from a standard normal distribution using rng.
func New(sizes []int, rng *rand.Rand) (*Network, error) {
	if len(sizes) < 2 {
		return nil, errors.Wrapf(ErrInvalidLayers, "need at least 2 layers, got %d", len(sizes))
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, errors.Wrapf(ErrInvalidLayers, "layer %d has size %d", i, s)
		}
	}
	if rng == nil {
		return nil, errors.New("model: nil random source")
	}

	n := newShaped(sizes)
	for k := range n.weights {
		randomize(n.weights[k].RawMatrix().Data, rng)
		randomize(n.biases[k].RawVector().Data, rng)
	}
	return n, nil
}

// newShaped allocates zeroed parameters and scratch for sizes.
func newShaped(sizes []int) *Network {
	layers := len(sizes) - 1
	n := &Network{
		sizes:       append([]int(nil), sizes...),
		weights:     make([]*mat.Dense, layers),
		biases:      make([]*mat.VecDense, layers),
		zs:          make([]*mat.VecDense, layers),
		activations: make([]*mat.VecDense, layers+1),
		deltas:      make([]*mat.VecDense, layers),
	}
	n.activations[0] = mat.NewVecDense(sizes[0], nil)
	for k := 0; k < layers; k++ {
		rows, cols := sizes[k+1], sizes[k]
		n.weights[k] = mat.NewDense(rows, cols, nil)
		n.biases[k] = mat.NewVecDense(rows, nil)
		n.zs[k] = mat.NewVecDense(rows, nil)
		n.activations[k+1] = mat.NewVecDense(rows, nil)
		n.deltas[k] = mat.NewVecDense(rows, nil)
	}
	n.nabla = n.newGradient()
	return n
}

func randomize(data []float64, rng *rand.Rand) {
	for i := range data {
		data[i] = rng.NormFloat64()
	}
}

// Sizes returns a copy of the layer sizes.
func (n *Network) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// NumLayers returns the number of layers, including the input layer.
func (n *Network) NumLayers() int { return len(n.sizes) }

// Weights returns a copy of the weight matrix feeding layer i+1.
func (n *Network) Weights(i int) *mat.Dense {
	return mat.DenseCopyOf(n.weights[i])
}

// Biases returns a copy of the bias vector of layer i+1.
func (n *Network) Biases(i int) *mat.VecDense {
	return mat.VecDenseCopyOf(n.biases[i])
}

// Clone returns an independent copy of the network parameters.
func (n *Network) Clone() *Network {
	c := newShaped(n.sizes)
	for k := range n.weights {
		c.weights[k].Copy(n.weights[k])
		c.biases[k].CopyVec(n.biases[k])
	}
	return c
}

// Feedforward returns the output activation for input x. It does not modify
// the network.
func (n *Network) Feedforward(x *mat.VecDense) (*mat.VecDense, error) {
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	return n.feedforward(x), nil
}

// feedforward is Feedforward on an input whose length is already checked.
func (n *Network) feedforward(x *mat.VecDense) *mat.VecDense {
	a := mat.VecDenseCopyOf(x)
	for k, w := range n.weights {
		z := mat.NewVecDense(n.sizes[k+1], nil)
		z.MulVec(w, a)
		z.AddVec(z, n.biases[k])
		sigmoidVec(z, z)
		a = z
	}
	return a
}

// Predict is Feedforward under the name used by callers serving predictions.
func (n *Network) Predict(x *mat.VecDense) (*mat.VecDense, error) {
	return n.Feedforward(x)
}

// Classify returns the index of the most activated output neuron.
func (n *Network) Classify(x *mat.VecDense) (int, error) {
	out, err := n.Feedforward(x)
	if err != nil {
		return 0, err
	}
	return ArgMax(out), nil
}

// Evaluate returns how many samples in data are classified correctly.
func (n *Network) Evaluate(data []LabeledSample) (int, error) {
	return Evaluate(n, data)
}

// Cost returns the mean quadratic cost 0.5*||a-y||^2 over data.
func (n *Network) Cost(data []Sample) (float64, error) {
	if len(data) == 0 {
		return 0, errors.Wrap(ErrEmptyData, "cost")
	}
	total := 0.0
	diff := mat.NewVecDense(n.sizes[len(n.sizes)-1], nil)
	for i, s := range data {
		if err := n.checkSample(s); err != nil {
			return 0, errors.Wrapf(err, "cost sample %d", i)
		}
		diff.SubVec(n.feedforward(s.Input), s.Target)
		total += 0.5 * mat.Dot(diff, diff)
	}
	return total / float64(len(data)), nil
}

func (n *Network) checkInput(x *mat.VecDense) error {
	if got := vecLen(x); got != n.sizes[0] {
		return &DimensionError{What: "input", Want: n.sizes[0], Got: got}
	}
	return nil
}

func (n *Network) checkSample(s Sample) error {
	if err := n.checkInput(s.Input); err != nil {
		return err
	}
	out := n.sizes[len(n.sizes)-1]
	if got := vecLen(s.Target); got != out {
		return &DimensionError{What: "target", Want: out, Got: got}
	}
	return nil
}

func vecLen(v *mat.VecDense) int {
	if v == nil || v.IsEmpty() {
		return 0
	}
	return v.Len()
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func sigmoidPrime(z float64) float64 {
	s := sigmoid(z)
	return s * (1 - s)
}

// sigmoidVec stores sigmoid(z) element-wise in dst. dst may alias z.
func sigmoidVec(dst, z *mat.VecDense) {
	for i := 0; i < z.Len(); i++ {
		dst.SetVec(i, sigmoid(z.AtVec(i)))
	}
}
