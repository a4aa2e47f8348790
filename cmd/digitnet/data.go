package main

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"digitnet/internal/config"
	"digitnet/internal/dataset"
)

// runData is the training set and the optional per-epoch evaluation set.
type runData struct {
	train *dataset.Set
	eval  *dataset.Set
}

func loadData(ctx context.Context, cfg *config.Config) (*runData, error) {
	switch cfg.Source {
	case config.SourceMNIST:
		train, validation, test, err := dataset.MNIST(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		d := &runData{train: train}
		switch cfg.EvalSet {
		case config.EvalTest:
			d.eval = test
		case config.EvalValidation:
			d.eval = validation
		}
		return d, nil

	case config.SourceShards:
		roots, err := dataset.DiscoverByRoot(cfg.ShardRoots)
		if err != nil {
			return nil, err
		}
		set, err := dataset.LoadShards(ctx, roots, dataset.ShardOptions{
			Seed:       cfg.Seed,
			NumWorkers: cfg.NumWorkers,
			Width:      cfg.ImageWidth,
			Height:     cfg.ImageHeight,
			Classes:    cfg.Classes,
		})
		if err != nil {
			return nil, err
		}
		if cfg.HoldOut >= set.Len() {
			return nil, errors.Errorf("hold_out %d leaves no training data out of %d records", cfg.HoldOut, set.Len())
		}
		train, held, err := set.Split(set.Len() - cfg.HoldOut)
		if err != nil {
			return nil, err
		}
		d := &runData{train: train}
		if cfg.EvalSet != config.EvalNone && held.Len() > 0 {
			d.eval = held
		}
		return d, nil

	case config.SourceXOR:
		classes := cfg.Sizes[len(cfg.Sizes)-1]
		set, err := dataset.XOR(classes)
		if err != nil {
			return nil, err
		}
		d := &runData{train: set}
		if cfg.EvalSet != config.EvalNone {
			if classes == 1 {
				klog.Warning("xor with a single output can not be scored by arg-max, skipping evaluation")
			} else {
				d.eval = set
			}
		}
		return d, nil
	}
	return nil, errors.Errorf("unknown source %q", cfg.Source)
}

// check verifies the layer sizes fit the data.
func (d *runData) check(sizes []int) error {
	if d.train.Len() == 0 {
		return errors.New("training set is empty")
	}
	if got := d.train.InputSize(); got != sizes[0] {
		return errors.Errorf("input layer has %d neurons but samples have %d values", sizes[0], got)
	}
	if out := sizes[len(sizes)-1]; out != d.train.Classes {
		return errors.Errorf("output layer has %d neurons but the data has %d classes", out, d.train.Classes)
	}
	return nil
}
