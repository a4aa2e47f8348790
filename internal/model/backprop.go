package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Gradient holds per-layer cost derivatives shaped like the network's
// biases and weights.
type Gradient struct {
	Biases  []*mat.VecDense
	Weights []*mat.Dense
}

func (n *Network) newGradient() *Gradient {
	g := &Gradient{
		Biases:  make([]*mat.VecDense, len(n.biases)),
		Weights: make([]*mat.Dense, len(n.weights)),
	}
	for k := range n.weights {
		r, c := n.weights[k].Dims()
		g.Weights[k] = mat.NewDense(r, c, nil)
		g.Biases[k] = mat.NewVecDense(r, nil)
	}
	return g
}

func (g *Gradient) zero() {
	for k := range g.Weights {
		g.Weights[k].Zero()
		g.Biases[k].Zero()
	}
}

// Backprop returns the gradient of the quadratic cost for the single
// sample (x, y), where y is a one-hot target.
func (n *Network) Backprop(x, y *mat.VecDense) (*Gradient, error) {
	if err := n.checkSample(Sample{Input: x, Target: y}); err != nil {
		return nil, err
	}
	g := n.newGradient()
	n.backprop(x, y, g)
	return g, nil
}

// backprop adds the gradient for (x, y) into g. Dimensions must already be
// checked.
func (n *Network) backprop(x, y *mat.VecDense, g *Gradient) {
	last := len(n.weights) - 1

	// Forward pass, keeping every z and activation.
	n.activations[0].CopyVec(x)
	for k, w := range n.weights {
		z := n.zs[k]
		z.MulVec(w, n.activations[k])
		z.AddVec(z, n.biases[k])
		sigmoidVec(n.activations[k+1], z)
	}

	// Output layer.
	delta := n.deltas[last]
	costDerivative(delta, n.activations[last+1], y)
	mulSigmoidPrime(delta, n.zs[last])
	g.Biases[last].AddVec(g.Biases[last], delta)
	g.Weights[last].RankOne(g.Weights[last], 1, delta, n.activations[last])

	// Hidden layers, walking back towards the input.
	for k := last - 1; k >= 0; k-- {
		delta = n.deltas[k]
		delta.MulVec(n.weights[k+1].T(), n.deltas[k+1])
		mulSigmoidPrime(delta, n.zs[k])
		g.Biases[k].AddVec(g.Biases[k], delta)
		g.Weights[k].RankOne(g.Weights[k], 1, delta, n.activations[k])
	}
}

// costDerivative stores dC/da for the quadratic cost, a - y, in dst.
func costDerivative(dst, output, target *mat.VecDense) {
	dst.SubVec(output, target)
}

// mulSigmoidPrime multiplies delta element-wise by sigmoid'(z).
func mulSigmoidPrime(delta, z *mat.VecDense) {
	for i := 0; i < delta.Len(); i++ {
		delta.SetVec(i, delta.AtVec(i)*sigmoidPrime(z.AtVec(i)))
	}
}

// UpdateMiniBatch applies one gradient descent step using the average
// gradient over batch. Every sample is validated before any parameter is
// touched, so an error leaves the network unchanged.
func (n *Network) UpdateMiniBatch(batch []Sample, learningRate float64) error {
	if !(learningRate > 0) {
		return errors.Wrapf(ErrInvalidHyperparameter, "learning rate %v", learningRate)
	}
	if len(batch) == 0 {
		return errors.Wrap(ErrEmptyData, "mini-batch")
	}
	for i, s := range batch {
		if err := n.checkSample(s); err != nil {
			return errors.Wrapf(err, "mini-batch sample %d", i)
		}
	}

	n.nabla.zero()
	for _, s := range batch {
		n.backprop(s.Input, s.Target, n.nabla)
	}

	eta := learningRate / float64(len(batch))
	for k := range n.weights {
		nw := n.nabla.Weights[k]
		nw.Scale(eta, nw)
		n.weights[k].Sub(n.weights[k], nw)
		n.biases[k].AddScaledVec(n.biases[k], -eta, n.nabla.Biases[k])
	}
	return nil
}
