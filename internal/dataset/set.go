package dataset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"digitnet/internal/model"
)

// Set is an ordered collection of input vectors and their class labels.
//
// Classes is the width of the output layer the set is meant for. A set with
// a single class encodes its 0/1 label directly as a one-element target
// instead of a one-hot vector.
type Set struct {
	Inputs  []*mat.VecDense
	Labels  []int
	Classes int
}

// Len returns the number of samples.
func (s *Set) Len() int { return len(s.Inputs) }

// InputSize returns the length of the input vectors, or 0 for an empty set.
func (s *Set) InputSize() int {
	if len(s.Inputs) == 0 || s.Inputs[0] == nil {
		return 0
	}
	return s.Inputs[0].Len()
}

// Validate checks that inputs and labels line up and every label fits
// Classes.
func (s *Set) Validate() error {
	if len(s.Inputs) != len(s.Labels) {
		return errors.Errorf("dataset: %d inputs but %d labels", len(s.Inputs), len(s.Labels))
	}
	if s.Classes <= 0 {
		return errors.Errorf("dataset: classes must be > 0 (got %d)", s.Classes)
	}
	limit := s.Classes
	if limit == 1 {
		limit = 2
	}
	size := s.InputSize()
	for i, x := range s.Inputs {
		if x == nil {
			return errors.Errorf("dataset: sample %d has no input", i)
		}
		if x.Len() != size {
			return errors.Errorf("dataset: sample %d has %d inputs, want %d", i, x.Len(), size)
		}
		if l := s.Labels[i]; l < 0 || l >= limit {
			return errors.Errorf("dataset: sample %d label %d out of range [0, %d)", i, l, limit)
		}
	}
	return nil
}

// Training returns the samples with vector targets, as consumed by
// backpropagation.
func (s *Set) Training() ([]model.Sample, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.Sample, len(s.Inputs))
	for i, x := range s.Inputs {
		var target *mat.VecDense
		if s.Classes == 1 {
			target = mat.NewVecDense(1, []float64{float64(s.Labels[i])})
		} else {
			var err error
			if target, err = model.OneHot(s.Labels[i], s.Classes); err != nil {
				return nil, errors.Wrapf(err, "sample %d", i)
			}
		}
		out[i] = model.Sample{Input: x, Target: target}
	}
	return out, nil
}

// Labeled returns the samples with scalar labels, as consumed by evaluation.
func (s *Set) Labeled() []model.LabeledSample {
	out := make([]model.LabeledSample, len(s.Inputs))
	for i, x := range s.Inputs {
		out[i] = model.LabeledSample{Input: x, Label: s.Labels[i]}
	}
	return out
}

// Split returns the first n samples and the rest. Input vectors are shared,
// not copied.
func (s *Set) Split(n int) (head, tail *Set, err error) {
	if n < 0 || n > s.Len() {
		return nil, nil, errors.Errorf("dataset: split at %d outside [0, %d]", n, s.Len())
	}
	head = &Set{Inputs: s.Inputs[:n:n], Labels: s.Labels[:n:n], Classes: s.Classes}
	tail = &Set{Inputs: s.Inputs[n:], Labels: s.Labels[n:], Classes: s.Classes}
	return head, tail, nil
}

// XOR returns the four rows of the XOR truth table. With classes == 1 the
// targets are the scalar XOR value, with classes == 2 they are one-hot.
func XOR(classes int) (*Set, error) {
	if classes != 1 && classes != 2 {
		return nil, errors.Errorf("dataset: xor supports 1 or 2 classes (got %d)", classes)
	}
	s := &Set{Classes: classes}
	for _, row := range [][3]float64{{0, 0, 0}, {0, 1, 1}, {1, 0, 1}, {1, 1, 0}} {
		s.Inputs = append(s.Inputs, mat.NewVecDense(2, []float64{row[0], row[1]}))
		s.Labels = append(s.Labels, int(row[2]))
	}
	return s, nil
}
