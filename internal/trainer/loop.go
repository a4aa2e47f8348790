package trainer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"digitnet/internal/metrics"
	"digitnet/internal/model"
)

// Options captures the knobs required by the training loop.
type Options struct {
	Epochs       int
	BatchSize    int
	LearningRate float64

	// Test is evaluated after every epoch when non-empty.
	Test []model.LabeledSample

	// Rng drives the per-epoch shuffle.
	Rng *rand.Rand

	// LogEvery logs the progress line every N epochs; the last epoch is
	// always logged. Defaults to 1.
	LogEvery int

	// OnEpoch, when set, receives every epoch report as soon as it is ready.
	OnEpoch func(EpochReport)
	// OnBatch, when set, is called after each mini-batch with the number of
	// batches done so far in the epoch and the epoch's batch count.
	OnBatch func(done, total int)
}

// EpochReport is the progress record emitted at the end of each epoch.
type EpochReport struct {
	Epoch     int
	Evaluated bool
	Correct   int
	Total     int
	Elapsed   time.Duration
	Stats     metrics.Snapshot
}

// Accuracy returns Correct/Total, or 0 when the epoch was not evaluated.
func (r EpochReport) Accuracy() float64 {
	if !r.Evaluated || r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

func (r EpochReport) String() string {
	if r.Evaluated {
		return fmt.Sprintf("Epoch %d : %d / %d", r.Epoch, r.Correct, r.Total)
	}
	return fmt.Sprintf("Epoch %d complete", r.Epoch)
}

// logLine is String followed by the epoch's wall time.
func (r EpochReport) logLine() string {
	return fmt.Sprintf("%s (%s)", r, r.Elapsed.Round(time.Millisecond))
}

// Validate verifies the options are runnable.
func (o Options) Validate() error {
	if o.Epochs <= 0 {
		return errors.Wrapf(model.ErrInvalidHyperparameter, "epochs must be > 0 (got %d)", o.Epochs)
	}
	if o.BatchSize <= 0 {
		return errors.Wrapf(model.ErrInvalidHyperparameter, "batch size must be > 0 (got %d)", o.BatchSize)
	}
	if !(o.LearningRate > 0) {
		return errors.Wrapf(model.ErrInvalidHyperparameter, "learning rate must be > 0 (got %v)", o.LearningRate)
	}
	if o.Rng == nil {
		return errors.New("trainer: random source is required")
	}
	if o.LogEvery < 0 {
		return errors.Errorf("trainer: log every must be >= 0 (got %d)", o.LogEvery)
	}
	return nil
}

// Train runs mini-batch stochastic gradient descent over data for
// opts.Epochs epochs. Each epoch reshuffles a private copy of data, splits it
// into consecutive mini-batches and applies them in order. The caller's slice
// is never reordered.
//
// Cancellation is honoured between mini-batches only.
func Train(ctx context.Context, m model.Model, data []model.Sample, opts Options) ([]EpochReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.Wrap(model.ErrEmptyData, "trainer: training set")
	}

	if opts.LogEvery == 0 {
		opts.LogEvery = 1
	}

	samples := append([]model.Sample(nil), data...)
	spans := Partition(len(samples), opts.BatchSize)
	reports := make([]EpochReport, 0, opts.Epochs)
	var window metrics.Window

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		start := time.Now()
		opts.Rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})

		for b, span := range spans {
			select {
			case <-ctx.Done():
				return reports, ctx.Err()
			default:
			}
			batch := samples[span.Start:span.End]
			startBatch := time.Now()
			if err := m.UpdateMiniBatch(batch, opts.LearningRate); err != nil {
				return reports, errors.Wrapf(err, "epoch %d batch %d", epoch, b)
			}
			window.Record(len(batch), time.Since(startBatch))
			if opts.OnBatch != nil {
				opts.OnBatch(b+1, len(spans))
			}
		}

		report := EpochReport{Epoch: epoch}
		if len(opts.Test) > 0 {
			startEval := time.Now()
			correct, err := m.Evaluate(opts.Test)
			if err != nil {
				return reports, errors.Wrapf(err, "epoch %d evaluation", epoch)
			}
			window.RecordEval(time.Since(startEval))
			report.Evaluated = true
			report.Correct = correct
			report.Total = len(opts.Test)
		}
		report.Elapsed = time.Since(start)
		report.Stats = window.Snapshot()

		if (epoch+1)%opts.LogEvery == 0 || epoch == opts.Epochs-1 {
			klog.Info(report.logLine())
		}
		klog.V(1).Infof("epoch=%d elapsed=%s samples_per_sec=%.1f batch_ms=%.3f eval_ms=%.2f",
			epoch,
			report.Elapsed.Round(time.Millisecond),
			report.Stats.SamplesPerSec,
			report.Stats.AvgBatchMS,
			report.Stats.EvalMS,
		)
		reports = append(reports, report)
		if opts.OnEpoch != nil {
			opts.OnEpoch(report)
		}
	}
	return reports, nil
}

// Span is the half-open range [Start, End) of one mini-batch.
type Span struct {
	Start int
	End   int
}

// Len returns the number of samples in the span.
func (s Span) Len() int { return s.End - s.Start }

// Partition splits n samples into consecutive mini-batches of size; the
// last one is shorter when size does not divide n.
func Partition(n, size int) []Span {
	if n <= 0 || size <= 0 {
		return nil
	}
	spans := make([]Span, 0, (n+size-1)/size)
	for k := 0; k < n; k += size {
		spans = append(spans, Span{Start: k, End: min(k+size, n)})
	}
	return spans
}
