package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"digitnet/internal/config"
	"digitnet/internal/metrics"
	"digitnet/internal/model"
	"digitnet/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config; defaults to the reference MNIST run")
	source := flag.String("source", "", "Override data source: mnist, shards or xor")
	dataDir := flag.String("data-dir", "", "Override MNIST data directory")
	sizes := flag.String("sizes", "", "Override layer sizes, e.g. 784,50,10")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Mini-batch size")
	learningRate := flag.Float64("learning-rate", 0, "Learning rate")
	seed := flag.Int64("seed", 0, "PRNG seed")
	evalSet := flag.String("eval", "", "Evaluate on test, validation or none after each epoch")
	plotPath := flag.String("plot", "", "Write an accuracy plot to this file (png, svg, pdf)")
	progress := flag.Bool("progress", false, "Show a progress bar for every epoch")

	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			klog.Fatalf("failed to load config: %+v", err)
		}
	}

	layerSizes, err := config.ParseSizes(*sizes)
	if err != nil {
		klog.Fatalf("invalid -sizes: %+v", err)
	}
	cfg.ApplyOverrides(config.Overrides{
		Source:       *source,
		DataDir:      *dataDir,
		Sizes:        layerSizes,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
		Seed:         *seed,
		EvalSet:      *evalSet,
		PlotPath:     *plotPath,
		Progress:     *progress,
	})
	if err := cfg.Validate(); err != nil {
		klog.Fatalf("invalid config: %+v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		klog.Fatalf("training failed: %+v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	data, err := loadData(ctx, cfg)
	if err != nil {
		return err
	}
	if err := data.check(cfg.Sizes); err != nil {
		return err
	}
	training, err := data.train.Training()
	if err != nil {
		return errors.Wrap(err, "training set")
	}
	var eval []model.LabeledSample
	if data.eval != nil {
		eval = data.eval.Labeled()
	}
	klog.Infof("source=%s train=%s eval=%s sizes=%v epochs=%d batch_size=%d learning_rate=%g seed=%d",
		cfg.Source,
		humanize.Comma(int64(len(training))),
		humanize.Comma(int64(len(eval))),
		cfg.Sizes, cfg.Epochs, cfg.BatchSize, cfg.LearningRate, cfg.Seed,
	)

	rng := rand.New(rand.NewSource(cfg.Seed))
	net, err := model.New(cfg.Sizes, rng)
	if err != nil {
		return err
	}

	history := metrics.NewHistory()
	opts := trainer.Options{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Test:         eval,
		Rng:          rng,
		LogEvery:     cfg.LogEvery,
		OnEpoch: func(r trainer.EpochReport) {
			if r.Evaluated {
				history.Add(r.Epoch, r.Accuracy())
			}
		},
	}
	if cfg.Progress {
		bar := newEpochBar()
		opts.OnBatch = bar.update
	}

	klog.V(1).Infof("run=%s", history.RunID)
	if _, err := trainer.Train(ctx, net, training, opts); err != nil {
		return err
	}

	if epoch, acc, ok := history.Best(); ok {
		klog.Infof("best epoch=%d accuracy=%.2f%%", epoch, 100*acc)
	}
	if cfg.PlotPath != "" {
		if history.Len() == 0 {
			klog.Warningf("no evaluated epochs, skipping plot %s", cfg.PlotPath)
		} else if err := history.WritePlot(cfg.PlotPath); err != nil {
			return err
		} else {
			klog.Infof("accuracy plot written to %s", cfg.PlotPath)
		}
	}
	klog.Infof("run time: %s", time.Since(start).Round(10*time.Millisecond))
	return nil
}
