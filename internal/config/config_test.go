package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{784, 50, 10}, cfg.Sizes)
	assert.Equal(t, 30, cfg.Epochs)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 1.5, cfg.LearningRate)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `# small shard run
source: shards
shard_roots:
  - /data/a
  - /data/b
image_width: 16
image_height: 16
classes: 4
hold_out: 100
sizes: [256, 32, 4]
epochs: 5
batch_size: 8
learning_rate: 0.5
seed: 9
eval_set: validation
plot_path: out/acc.png
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceShards, cfg.Source)
	assert.Equal(t, []string{"/data/a", "/data/b"}, cfg.ShardRoots)
	assert.Equal(t, []int{256, 32, 4}, cfg.Sizes)
	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 0.5, cfg.LearningRate)
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, EvalValidation, cfg.EvalSet)
	assert.Equal(t, "out/acc.png", cfg.PlotPath)
	assert.Equal(t, 4, cfg.NumWorkers, "unset keys keep their defaults")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("epochs: 3\nmomentum: 0.9\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		Source:       SourceXOR,
		Sizes:        []int{2, 3, 2},
		Epochs:       100,
		LearningRate: 2,
		Seed:         -4,
		Progress:     true,
	})
	assert.Equal(t, SourceXOR, cfg.Source)
	assert.Equal(t, []int{2, 3, 2}, cfg.Sizes)
	assert.Equal(t, 100, cfg.Epochs)
	assert.Equal(t, 10, cfg.BatchSize, "zero override keeps the current value")
	assert.Equal(t, 2.0, cfg.LearningRate)
	assert.Equal(t, int64(-4), cfg.Seed)
	assert.True(t, cfg.Progress)
	assert.Equal(t, "data/mnist", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown source":  func(c *Config) { c.Source = "cifar" },
		"mnist no dir":    func(c *Config) { c.DataDir = "" },
		"shards no roots": func(c *Config) { c.Source = SourceShards },
		"one layer":       func(c *Config) { c.Sizes = []int{784} },
		"zero layer":      func(c *Config) { c.Sizes = []int{784, 0, 10} },
		"zero epochs":     func(c *Config) { c.Epochs = 0 },
		"zero batch":      func(c *Config) { c.BatchSize = 0 },
		"negative lr":     func(c *Config) { c.LearningRate = -0.1 },
		"eval set":        func(c *Config) { c.EvalSet = "train" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Errorf(t, cfg.Validate(), "case %s", name)
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	cfg := Default()
	cfg.NumWorkers = 0
	cfg.LogEvery = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.NumWorkers)
	assert.Equal(t, 1, cfg.LogEvery)
}

func TestParseSizes(t *testing.T) {
	sizes, err := ParseSizes("784, 50,10")
	require.NoError(t, err)
	assert.Equal(t, []int{784, 50, 10}, sizes)

	sizes, err = ParseSizes("")
	require.NoError(t, err)
	assert.Nil(t, sizes)

	_, err = ParseSizes("784,x")
	assert.Error(t, err)
}
