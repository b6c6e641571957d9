// Package config loads the settings of training and analysis runs from a file and
// ROLLVAE_* environment variables
package config

import "fmt"
import "path/filepath"
import "strings"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "github.com/spf13/viper"

import "github.com/neurlang/rollvae/analysis"
import "github.com/neurlang/rollvae/cache"
import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/model"
import "github.com/neurlang/rollvae/pianoroll"
import "github.com/neurlang/rollvae/probe"

type Data struct {
	Dataset    string  `mapstructure:"dataset"`
	ScoreType  string  `mapstructure:"score_type"`
	Binarize   bool    `mapstructure:"binarize"`
	NumClasses int     `mapstructure:"num_classes"`
	Pitches    int     `mapstructure:"pitches"`
	Frames     int     `mapstructure:"frames"`
	MinPitch   int     `mapstructure:"min_pitch"`
	Samples    int     `mapstructure:"samples"`
	ValidFrac  float64 `mapstructure:"valid_size"`
	TestFrac   float64 `mapstructure:"test_size"`
	BatchSize  int     `mapstructure:"batch_size"`
}

type Model struct {
	Kind       string  `mapstructure:"kind"`
	Hidden     []int   `mapstructure:"hidden"`
	LatentSize int     `mapstructure:"latent_size"`
	Dropout    float64 `mapstructure:"dropout"`
}

type Train struct {
	Epochs       int     `mapstructure:"epochs"`
	LearningRate float64 `mapstructure:"lr"`
	WeightDecay  float64 `mapstructure:"weight_decay"`
	ClipNorm     float64 `mapstructure:"clip_norm"`
	BetaInit     float64 `mapstructure:"beta_init"`
	BetaStep     float64 `mapstructure:"beta_step"`
	BetaMax      float64 `mapstructure:"beta_max"`
	WarmupEpochs int     `mapstructure:"warmup_epochs"`
	Prefetch     int     `mapstructure:"prefetch"`
}

type Probe struct {
	Hidden       int     `mapstructure:"hidden"`
	LearningRate float64 `mapstructure:"lr"`
	WeightDecay  float64 `mapstructure:"weight_decay"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
}

type Analysis struct {
	Components     int     `mapstructure:"components"`
	Perplexity     float64 `mapstructure:"perplexity"`
	TSNEIterations int     `mapstructure:"tsne_iterations"`
	TraversalSteps int     `mapstructure:"traversal_steps"`
	TraversalSpan  float64 `mapstructure:"traversal_span"`
	Arithmetic     int     `mapstructure:"arithmetic"`
	TicksPerFrame  int     `mapstructure:"ticks_per_frame"`
}

type Paths struct {
	Output string `mapstructure:"output"`
	Cache  string `mapstructure:"cache"`
}

type Metrics struct {
	MongoURI   string `mapstructure:"mongo_uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type Log struct {
	Level string `mapstructure:"level"`
	Quiet bool   `mapstructure:"quiet"`
}

// Config is the whole run configuration
type Config struct {
	Device   string   `mapstructure:"device"`
	Seed     int64    `mapstructure:"seed"`
	Data     Data     `mapstructure:"data"`
	Model    Model    `mapstructure:"model"`
	Train    Train    `mapstructure:"train"`
	Probe    Probe    `mapstructure:"probe"`
	Analysis Analysis `mapstructure:"analysis"`
	Paths    Paths    `mapstructure:"paths"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Log      Log      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	h := learning.DefaultHyperParameters()
	p := probe.DefaultConfig()
	ts := analysis.DefaultTSNE()
	tr := analysis.DefaultTraversal()

	v.SetDefault("device", "cpu")
	v.SetDefault("seed", 1)

	v.SetDefault("data.dataset", "synthetic")
	v.SetDefault("data.score_type", datasets.Mono)
	v.SetDefault("data.binarize", true)
	v.SetDefault("data.num_classes", 2)
	v.SetDefault("data.pitches", 48)
	v.SetDefault("data.frames", 64)
	v.SetDefault("data.min_pitch", 36)
	v.SetDefault("data.samples", 2048)
	v.SetDefault("data.valid_size", 0.2)
	v.SetDefault("data.test_size", 0.2)
	v.SetDefault("data.batch_size", h.BatchSize)

	v.SetDefault("model.kind", string(model.VAE))
	v.SetDefault("model.hidden", []int{512, 256})
	v.SetDefault("model.latent_size", 16)
	v.SetDefault("model.dropout", 0.0)

	v.SetDefault("train.epochs", h.Epochs)
	v.SetDefault("train.lr", h.LearningRate)
	v.SetDefault("train.weight_decay", h.WeightDecay)
	v.SetDefault("train.clip_norm", h.ClipNorm)
	v.SetDefault("train.beta_init", h.BetaInit)
	v.SetDefault("train.beta_step", h.BetaStep)
	v.SetDefault("train.beta_max", h.BetaMax)
	v.SetDefault("train.warmup_epochs", h.WarmupEpochs)
	v.SetDefault("train.prefetch", h.Prefetch)

	v.SetDefault("probe.hidden", p.Hidden)
	v.SetDefault("probe.lr", p.LearningRate)
	v.SetDefault("probe.weight_decay", p.WeightDecay)
	v.SetDefault("probe.epochs", p.Epochs)
	v.SetDefault("probe.batch_size", p.BatchSize)

	v.SetDefault("analysis.components", 3)
	v.SetDefault("analysis.perplexity", ts.Perplexity)
	v.SetDefault("analysis.tsne_iterations", ts.Iterations)
	v.SetDefault("analysis.traversal_steps", tr.Steps)
	v.SetDefault("analysis.traversal_span", tr.Span)
	v.SetDefault("analysis.arithmetic", 10)
	v.SetDefault("analysis.ticks_per_frame", 30)

	v.SetDefault("paths.output", "output")
	v.SetDefault("paths.cache", filepath.Join("output", "cache"))

	v.SetDefault("metrics.mongo_uri", "")
	v.SetDefault("metrics.database", "rollvae")
	v.SetDefault("metrics.collection", "scalars")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.quiet", false)
}

// Load reads path (any format viper knows, optional) over the defaults, then applies
// ROLLVAE_* environment overrides, e.g. ROLLVAE_MODEL_KIND=wae
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ROLLVAE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate resolves every selector, failing on unknown ones
func (c *Config) Validate() error {
	if c.Data.Pitches <= 0 || c.Data.Frames <= 0 {
		return errors.Errorf("config: bar shape %dx%d", c.Data.Pitches, c.Data.Frames)
	}
	if err := c.ModelConfig().Validate(); err != nil {
		return err
	}
	if err := c.DatasetKey().Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// ApplyLogging configures the standard logger
func (c *Config) ApplyLogging() {
	if level, err := log.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
}

func (c *Config) Shape() datasets.Shape {
	return datasets.Shape{Pitches: c.Data.Pitches, Frames: c.Data.Frames}
}

func (c *Config) DatasetKey() datasets.Key {
	return datasets.Key{
		Dataset:    c.Data.Dataset,
		ScoreType:  c.Data.ScoreType,
		Binarize:   c.Data.Binarize,
		NumClasses: c.Data.NumClasses,
	}
}

func (c *Config) Synthetic() datasets.Synthetic {
	return datasets.Synthetic{
		Shape:     c.Shape(),
		Samples:   c.Data.Samples,
		ValidFrac: c.Data.ValidFrac,
		TestFrac:  c.Data.TestFrac,
		Seed:      c.Seed,
	}
}

func (c *Config) ModelConfig() model.Config {
	return model.Config{
		Kind:       model.Kind(c.Model.Kind),
		InputSize:  c.Shape().Size(),
		Hidden:     c.Model.Hidden,
		LatentSize: c.Model.LatentSize,
		Dropout:    c.Model.Dropout,
	}
}

func (c *Config) HyperParameters() learning.HyperParameters {
	return learning.HyperParameters{
		Epochs:             c.Train.Epochs,
		BatchSize:          c.Data.BatchSize,
		LearningRate:       c.Train.LearningRate,
		WeightDecay:        c.Train.WeightDecay,
		ClipNorm:           c.Train.ClipNorm,
		BetaInit:           c.Train.BetaInit,
		BetaStep:           c.Train.BetaStep,
		BetaMax:            c.Train.BetaMax,
		WarmupEpochs:       c.Train.WarmupEpochs,
		Prefetch:           c.Train.Prefetch,
		DisableProgressBar: c.Log.Quiet,
	}
}

func (c *Config) ProbeConfig() probe.Config {
	return probe.Config{
		Hidden:             c.Probe.Hidden,
		LearningRate:       c.Probe.LearningRate,
		WeightDecay:        c.Probe.WeightDecay,
		Epochs:             c.Probe.Epochs,
		BatchSize:          c.Probe.BatchSize,
		Seed:               c.Seed,
		DisableProgressBar: c.Log.Quiet,
	}
}

// Store is the on-disk cache of imported corpora and latent codes. Corpora built
// with different bar shapes, sizes or seeds never share a directory.
func (c *Config) Store() *cache.Store {
	dir := fmt.Sprintf("%s_%dx%d_%d_%d", c.Data.Dataset, c.Data.Pitches, c.Data.Frames, c.Data.Samples, c.Seed)
	return cache.New(filepath.Join(c.Paths.Cache, dir))
}

// ImportDataset loads or builds the corpus this configuration names
func (c *Config) ImportDataset(threads int) (*datasets.Bundle, error) {
	return datasets.Import(c.Store(), c.DatasetKey(), threads, c.Synthetic().Build)
}

// Bar maps flattened bars of this corpus to MIDI
func (c *Config) Bar() pianoroll.Bar {
	return pianoroll.Bar{
		Pitches:       c.Data.Pitches,
		Frames:        c.Data.Frames,
		MinPitch:      c.Data.MinPitch,
		Poly:          c.Data.ScoreType == datasets.Poly,
		Threshold:     0.5,
		TicksPerFrame: c.Analysis.TicksPerFrame,
	}
}

// runKey identifies a trained model by everything its weights depend on
type runKey struct {
	Dataset  datasets.Key      `json:"dataset"`
	Model    model.Config      `json:"model"`
	Training learning.Schedule `json:"training"`
	Seed     int64             `json:"seed"`
}

// RunDir is the output directory of the run this configuration describes
func (c *Config) RunDir() (string, error) {
	digest, err := cache.Digest(runKey{c.DatasetKey(), c.ModelConfig(), c.HyperParameters().Schedule(), c.Seed})
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Paths.Output, c.Model.Kind+"_"+digest[:12]), nil
}

// ModelPrefix is the per-epoch full-model checkpoint prefix of the run
func (c *Config) ModelPrefix() (string, error) {
	dir, err := c.RunDir()
	return filepath.Join(dir, "models", "rollvae"), err
}

// WeightsPrefix is the per-epoch parameter checkpoint prefix of the run
func (c *Config) WeightsPrefix() (string, error) {
	dir, err := c.RunDir()
	return filepath.Join(dir, "weights", "rollvae"), err
}

// BestModel is the full model of the best validation epoch
func (c *Config) BestModel() (string, error) {
	dir, err := c.RunDir()
	return filepath.Join(dir, "models", "best.model.zlib"), err
}
