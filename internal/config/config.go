package config

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Data sources understood by the driver.
const (
	SourceMNIST  = "mnist"
	SourceShards = "shards"
	SourceXOR    = "xor"
)

// Sets the network can be evaluated on after each epoch.
const (
	EvalTest       = "test"
	EvalValidation = "validation"
	EvalNone       = "none"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Source  string `yaml:"source"`
	DataDir string `yaml:"data_dir"`

	ShardRoots  []string `yaml:"shard_roots"`
	ImageWidth  int      `yaml:"image_width"`
	ImageHeight int      `yaml:"image_height"`
	Classes     int      `yaml:"classes"`
	NumWorkers  int      `yaml:"num_workers"`
	// HoldOut is the number of trailing shard records kept for evaluation.
	HoldOut int `yaml:"hold_out"`

	Sizes        []int   `yaml:"sizes"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
	EvalSet      string  `yaml:"eval_set"`

	LogEvery int    `yaml:"log_every"`
	PlotPath string `yaml:"plot_path"`
	Progress bool   `yaml:"progress"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Source       string
	DataDir      string
	Sizes        []int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
	EvalSet      string
	PlotPath     string
	Progress     bool
}

// Default returns the configuration of the reference MNIST run: one hidden
// layer of 50 neurons, 30 epochs of mini-batches of 10 at learning rate 1.5.
func Default() *Config {
	return &Config{
		Source:       SourceMNIST,
		DataDir:      "data/mnist",
		ImageWidth:   28,
		ImageHeight:  28,
		Classes:      10,
		NumWorkers:   4,
		HoldOut:      10000,
		Sizes:        []int{784, 50, 10},
		Epochs:       30,
		BatchSize:    10,
		LearningRate: 1.5,
		Seed:         1,
		EvalSet:      EvalTest,
		LogEvery:     1,
	}
}

// Load reads a Config from YAML on top of Default and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML from r on top of Default. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Source != "" {
		c.Source = o.Source
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if len(o.Sizes) > 0 {
		c.Sizes = append([]int(nil), o.Sizes...)
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.EvalSet != "" {
		c.EvalSet = o.EvalSet
	}
	if o.PlotPath != "" {
		c.PlotPath = o.PlotPath
	}
	if o.Progress {
		c.Progress = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Source {
	case SourceMNIST:
		if c.DataDir == "" {
			return errors.New("data_dir must be set for the mnist source")
		}
	case SourceShards:
		if len(c.ShardRoots) == 0 {
			return errors.New("shard_roots must be set for the shards source")
		}
		if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
			return errors.Errorf("image size must be > 0 (got %dx%d)", c.ImageWidth, c.ImageHeight)
		}
		if c.Classes <= 0 {
			return errors.Errorf("classes must be > 0 (got %d)", c.Classes)
		}
		if c.HoldOut < 0 {
			return errors.Errorf("hold_out must be >= 0 (got %d)", c.HoldOut)
		}
	case SourceXOR:
	default:
		return errors.Errorf("unknown source %q", c.Source)
	}
	if len(c.Sizes) < 2 {
		return errors.Errorf("sizes needs at least 2 layers (got %v)", c.Sizes)
	}
	for i, s := range c.Sizes {
		if s <= 0 {
			return errors.Errorf("sizes[%d] must be > 0 (got %d)", i, s)
		}
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if !(c.LearningRate > 0) {
		return errors.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	switch c.EvalSet {
	case EvalTest, EvalValidation, EvalNone:
	default:
		return errors.Errorf("unknown eval_set %q", c.EvalSet)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 1
	}
	return nil
}

// ParseSizes parses a comma separated layer-size list such as "784,50,10".
func ParseSizes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sizes := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "layer size %d", i)
		}
		sizes[i] = v
	}
	return sizes, nil
}
