package config

import "os"
import "path/filepath"
import "testing"

import "github.com/pkg/errors"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/model"

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	h := learning.DefaultHyperParameters()
	assert.Equal(t, "cpu", c.Device)
	assert.Equal(t, model.VAE, c.ModelConfig().Kind)
	assert.Equal(t, 48*64, c.ModelConfig().InputSize)
	assert.Equal(t, []int{512, 256}, c.Model.Hidden)
	assert.Equal(t, h.Epochs, c.HyperParameters().Epochs)
	assert.Equal(t, h.WarmupEpochs, c.HyperParameters().WarmupEpochs)
	assert.InDelta(t, h.BetaStep, c.HyperParameters().BetaStep, 1e-12)
	assert.Equal(t, "mono", c.DatasetKey().ScoreType)
	assert.Equal(t, c.Seed, c.ProbeConfig().Seed)
	assert.InDelta(t, 1e-4, c.ProbeConfig().WeightDecay, 1e-12)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  kind: wae
  latent_size: 4
  hidden: [32]
data:
  score_type: poly
  pitches: 12
  frames: 16
log:
  quiet: true
`), 0644))
	t.Setenv("ROLLVAE_TRAIN_EPOCHS", "7")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.WAE, c.ModelConfig().Kind)
	assert.Equal(t, []int{32}, c.ModelConfig().Hidden)
	assert.Equal(t, 12*16, c.ModelConfig().InputSize)
	assert.Equal(t, "poly", c.DatasetKey().ScoreType)
	assert.Equal(t, 7, c.HyperParameters().Epochs)
	assert.True(t, c.HyperParameters().DisableProgressBar)
	assert.True(t, c.ProbeConfig().DisableProgressBar)
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	t.Setenv("ROLLVAE_MODEL_KIND", "gan")
	_, err := Load("")
	assert.True(t, errors.Is(err, model.ErrUnknownKind))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunDir(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	a, err := c.RunDir()
	require.NoError(t, err)
	b, err := c.RunDir()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c.Log.Quiet = true
	quiet, err := c.RunDir()
	require.NoError(t, err)
	assert.Equal(t, a, quiet)

	c.Model.Kind = "ae"
	other, err := c.RunDir()
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	prefix, err := c.ModelPrefix()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(other, "models", "rollvae"), prefix)
}
