package metrics

import "time"

// Window accumulates timing stats across the mini-batches of an epoch.
type Window struct {
	samples int
	batches int
	compute time.Duration
	eval    time.Duration
}

// Record adds a mini-batch measurement to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration) {
	w.samples += batchSize
	w.compute += computeTime
	w.batches++
}

// RecordEval adds time spent evaluating held-out data.
func (w *Window) RecordEval(d time.Duration) {
	w.eval += d
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Samples: w.samples, Batches: w.batches}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.batches > 0 {
		snap.AvgBatchMS = (w.compute.Seconds() * 1000) / float64(w.batches)
	}
	snap.EvalMS = w.eval.Seconds() * 1000

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples       int
	Batches       int
	SamplesPerSec float64
	AvgBatchMS    float64
	EvalMS        float64
}
