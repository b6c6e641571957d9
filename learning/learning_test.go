package learning

import "context"
import "math"
import "math/rand"
import "os"
import "path/filepath"
import "testing"

import log "github.com/sirupsen/logrus"
import "github.com/sirupsen/logrus/hooks/test"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/layer/layertest"
import "github.com/neurlang/rollvae/model"

func TestKLDivergenceStandardNormal(t *testing.T) {
	for _, shape := range [][2]int{{1, 1}, {4, 3}, {64, 16}} {
		mu := mat.NewDense(shape[0], shape[1], nil)
		lv := mat.NewDense(shape[0], shape[1], nil)
		kl, dmu, dlv := KLDivergence(mu, lv)
		assert.Equal(t, 0.0, kl)
		assert.Equal(t, 0.0, mat.Sum(dmu))
		assert.Equal(t, 0.0, mat.Sum(dlv))
	}
}

func TestKLDivergenceSummed(t *testing.T) {
	mu := mat.NewDense(2, 1, []float64{1, 1})
	lv := mat.NewDense(2, 1, nil)
	kl, _, _ := KLDivergence(mu, lv)
	// 0.5 per element, summed not averaged
	assert.InDelta(t, 1.0, kl, 1e-12)

	lv = mat.NewDense(2, 1, []float64{1, 1})
	kl, _, _ = KLDivergence(mat.NewDense(2, 1, nil), lv)
	assert.InDelta(t, 2*-0.5*(2-math.E), kl, 1e-12)
}

func TestMSE(t *testing.T) {
	recon := mat.NewDense(1, 4, []float64{1, 0, 0, 0})
	x := mat.NewDense(1, 4, nil)
	v, g := MSE(recon, x)
	assert.Equal(t, 0.25, v)
	assert.Equal(t, []float64{0.5, 0, 0, 0}, g.RawMatrix().Data)
}

func TestAnnealer(t *testing.T) {
	h := DefaultHyperParameters()
	a := NewAnnealer(h)
	prev := a.Beta()
	for epoch := 1; epoch <= 600; epoch++ {
		if epoch <= h.WarmupEpochs {
			assert.Equal(t, h.BetaInit, a.Beta(), "epoch %d", epoch)
		}
		a.EpochDone(epoch)
		assert.GreaterOrEqual(t, a.Beta(), prev)
		assert.LessOrEqual(t, a.Beta(), 1.0)
		prev = a.Beta()
	}
	assert.Equal(t, 1.0, a.Beta())

	a = NewAnnealer(h)
	for epoch := 1; epoch <= 11; epoch++ {
		a.EpochDone(epoch)
	}
	assert.InDelta(t, 0.0025, a.Beta(), 1e-15)
}

func TestComposeGradients(t *testing.T) {
	for _, kind := range []model.Kind{model.VAE, model.VAEFlow, model.WAE} {
		t.Run(string(kind), func(t *testing.T) {
			rng := rand.New(rand.NewSource(2))
			m, err := model.New(model.Config{Kind: kind, InputSize: 5, Hidden: []int{4}, LatentSize: 2}, rng)
			require.NoError(t, err)
			x := layertest.Random(rand.New(rand.NewSource(3)), 4, 5)
			const beta = 0.7
			objective := func() float64 {
				rng.Seed(11)
				out := m.Forward(x)
				l, _ := Compose(m, out, x, beta)
				return l.Total
			}

			for _, p := range m.Params() {
				p.ZeroGrad()
			}
			rng.Seed(11)
			out := m.Forward(x)
			l, g := Compose(m, out, x, beta)
			assert.InDelta(t, l.Recon+beta*l.KL, l.Total, 1e-12)
			m.Backward(out, g)

			const h = 1e-6
			for _, p := range m.Params() {
				data := p.Value.RawMatrix().Data
				for i := range data {
					orig := data[i]
					data[i] = orig + h
					plus := objective()
					data[i] = orig - h
					minus := objective()
					data[i] = orig
					assert.InDelta(t, (plus-minus)/(2*h), p.Grad.RawMatrix().Data[i], 1e-5, "%s[%d]", p.Name, i)
				}
			}
		})
	}
}

func TestComposeFlowCreditsLogDet(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.VAEFlow, InputSize: 5, Hidden: []int{4}, LatentSize: 3}, rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	x := layertest.Random(rand.New(rand.NewSource(7)), 4, 5)
	out := m.Forward(x)
	require.Len(t, out.LogDet, 4)

	kl, _, _ := KLDivergence(out.Mu, out.LogVar)
	var sum float64
	for _, ld := range out.LogDet {
		sum += ld
	}
	l, g := Compose(m, out, x, 0.5)
	assert.InDelta(t, kl-sum, l.KL, 1e-12)
	assert.Equal(t, []float64{-0.5, -0.5, -0.5, -0.5}, g.LogDet)
}

func TestComposeAutoencoder(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.AE, InputSize: 3, LatentSize: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	x := mat.NewDense(2, 3, nil)
	l, g := Compose(m, m.Forward(x), x, 1)
	assert.Zero(t, l.KL)
	assert.Equal(t, l.Recon, l.Total)
	assert.Nil(t, g.Mu)
	assert.Nil(t, g.Latent)
}

func toyLoader(t *testing.T) datasets.Loader {
	s := datasets.Synthetic{Shape: datasets.Shape{Pitches: 6, Frames: 4}, Samples: 16, Seed: 4}
	d := s.Generate(datasets.Key{ScoreType: datasets.Mono, Binarize: true})
	l, err := datasets.NewSliceLoader(d, 4)
	require.NoError(t, err)
	return l
}

func TestTrainingReducesLoss(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.VAE, InputSize: 24, Hidden: []int{16}, LatentSize: 4}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	h := DefaultHyperParameters()
	h.LearningRate = 1e-2
	h.DisableProgressBar = true
	logger, hook := test.NewNullLogger()
	h.SetLogger(logger)
	l := New(m, h)
	loader := toyLoader(t)
	ctx := context.Background()

	first := l.Validate(ctx, loader, 0)
	assert.Equal(t, 4, first.Batches)
	var last Stats
	for epoch := 1; epoch <= 40; epoch++ {
		train := l.Train(ctx, loader, epoch)
		assert.Equal(t, Train, train.Split)
		assert.Equal(t, 0, train.NonFinite)
		last = l.Validate(ctx, loader, epoch)
	}
	assert.Less(t, last.ReconMean(), first.ReconMean())
	assert.False(t, m.Training())
	assert.InDelta(t, 30*h.BetaStep, l.Annealer.Beta(), 1e-12)

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, log.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, Validate, hook.LastEntry().Data["split"])
}

func TestEvaluationDoesNotUpdate(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.AE, InputSize: 24, Hidden: []int{8}, LatentSize: 2}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	h := DefaultHyperParameters()
	h.DisableProgressBar = true
	h.SetLogger(log.New())
	l := New(m, h)
	before := mat.DenseCopyOf(m.Params()[0].Value)
	a := l.Test(context.Background(), toyLoader(t), 1)
	b := l.Test(context.Background(), toyLoader(t), 1)
	assert.True(t, mat.Equal(before, m.Params()[0].Value))
	assert.Equal(t, a.Loss, b.Loss)
	assert.Equal(t, Test, a.Split)
	assert.Equal(t, "_TEST", a.Split.Suffix())
	assert.Zero(t, l.Annealer.Beta())
}

func TestCancelledPass(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.VAE, InputSize: 24, Hidden: []int{8}, LatentSize: 2}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	h := DefaultHyperParameters()
	h.WarmupEpochs = 0
	h.DisableProgressBar = true
	h.SetLogger(log.New())
	l := New(m, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := l.Train(ctx, toyLoader(t), 1)
	assert.Zero(t, l.Annealer.Beta(), "an interrupted epoch does not advance beta")
	if s.Batches == 0 {
		assert.True(t, math.IsNaN(s.LossMean()))
	}
	assert.True(t, math.IsNaN(Stats{}.LossMean()))
	assert.True(t, math.IsNaN(Stats{}.KLMean()))
	assert.True(t, math.IsNaN(Stats{}.ReconMean()))

	l.Train(context.Background(), toyLoader(t), 1)
	assert.InDelta(t, h.BetaStep, l.Annealer.Beta(), 1e-12)
}

func TestSave(t *testing.T) {
	m, err := model.New(model.Config{Kind: model.VAE, InputSize: 4, LatentSize: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	l := New(m, DefaultHyperParameters())
	dir := t.TempDir()
	modelPrefix := filepath.Join(dir, "models", "vae")
	weightsPrefix := filepath.Join(dir, "weights", "deep", "vae")
	require.NoError(t, l.Save(modelPrefix, weightsPrefix, 3))
	assert.FileExists(t, ModelPath(modelPrefix, 3))
	assert.FileExists(t, WeightsPath(weightsPrefix, 3))

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	assert.Error(t, l.Save(filepath.Join(blocker, "sub", "vae"), weightsPrefix, 4))
}
