package probe

import "math"
import "math/rand"
import "testing"

import "github.com/pkg/errors"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/layer/batchnorm"

func TestClasses(t *testing.T) {
	c, err := Classes(datasets.Int, []float64{0, 3, 7, 2})
	require.NoError(t, err)
	assert.Equal(t, 8, c)
	c, err = Classes(datasets.Float, []float64{0.3})
	require.NoError(t, err)
	assert.Equal(t, 1, c)
	c, err = Classes(datasets.Bool, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, c)
	_, err = Classes(datasets.FeatureKind(42), nil)
	assert.True(t, errors.Is(err, ErrUnknownFeatureKind))
}

func TestBestUsesValidation(t *testing.T) {
	history := []EpochLoss{
		{Epoch: 1, Valid: 3, Test: 3.1},
		{Epoch: 2, Valid: 2, Test: 2.5},
		{Epoch: 3, Valid: 0.5, Test: 1.5},
		{Epoch: 4, Valid: 0.9, Test: 0.2},
		{Epoch: 5, Valid: 1.1, Test: 0.1},
	}
	best := Best(history)
	assert.Equal(t, 3, best.Epoch)
	assert.Equal(t, 1.5, best.Test)
	assert.Equal(t, EpochLoss{}, Best(nil))
}

func TestHeadGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	out := mat.NewDense(3, 4, nil)
	for i, d := 0, out.RawMatrix().Data; i < len(d); i++ {
		d[i] = rng.NormFloat64()
	}
	for _, h := range []head{{classes: 4}, {classes: 1}} {
		o := out
		if h.classes == 1 {
			o = mat.DenseCopyOf(out.Slice(0, 3, 0, 1))
		}
		y := []float64{0, 3, 9}
		_, grad := h.loss(o, y)
		r, c := o.Dims()
		const step = 1e-6
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := o.At(i, j)
				o.Set(i, j, v+step)
				plus, _ := h.loss(o, y)
				o.Set(i, j, v-step)
				minus, _ := h.loss(o, y)
				o.Set(i, j, v)
				assert.InDelta(t, (plus-minus)/(2*step), grad.At(i, j), 1e-5)
			}
		}
	}
	assert.Equal(t, 3, head{classes: 4}.label(9))
	assert.Equal(t, 0, head{classes: 4}.label(-1))
}

// separable builds codes whose first coordinate decides the class
func separable(rng *rand.Rand, n int) Split {
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		class := i % 2
		y[i] = float64(class)
		x.Set(i, 0, float64(2*class-1)+0.1*rng.NormFloat64())
		x.Set(i, 1, rng.NormFloat64())
		x.Set(i, 2, rng.NormFloat64())
	}
	return Split{Latent: x, Targets: y}
}

func TestTrainLearnsSeparableFeature(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	cfg := DefaultConfig()
	cfg.Hidden = 16
	cfg.Epochs = 30
	cfg.BatchSize = 16
	cfg.DisableProgressBar = true
	r, err := Train("quality", datasets.Bool, separable(rng, 64), separable(rng, 32), separable(rng, 32), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Classes)
	assert.Len(t, r.History, 30)
	assert.Less(t, r.BestValid, math.Log(2)/2)

	best := Best(r.History)
	assert.Equal(t, r.BestEpoch, best.Epoch)
	assert.Equal(t, r.BestTest, best.Test)
	for _, e := range r.History {
		assert.GreaterOrEqual(t, e.Valid, r.BestValid)
	}
}

func TestTrainRegression(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	split := func(n int) Split {
		x := mat.NewDense(n, 2, nil)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			a := rng.Float64()
			x.Set(i, 0, a)
			x.Set(i, 1, rng.Float64())
			y[i] = 0.5 * a
		}
		return Split{Latent: x, Targets: y}
	}
	cfg := DefaultConfig()
	cfg.Hidden = 8
	cfg.Epochs = 20
	cfg.DisableProgressBar = true
	r, err := Train("note_density", datasets.Float, split(64), split(16), split(16), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Classes)
	assert.Less(t, r.History[len(r.History)-1].Train, r.History[0].Train*2)

	_, err = Train("x", datasets.Float, Split{Latent: mat.NewDense(2, 2, nil), Targets: []float64{1}}, split(2), split(2), cfg)
	assert.Error(t, err)
}

func TestNetworkNormalizesHiddenLayer(t *testing.T) {
	net, err := network(3, 2, 8, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, 4, net.Len())
	norm, ok := net.GetLayer(1).(*batchnorm.BatchNorm)
	require.True(t, ok)
	assert.Len(t, norm.Mean, 8)

	var names []string
	for _, p := range net.Params() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"probe.hidden.weight", "probe.hidden.bias", "probe.norm.gamma", "probe.norm.beta", "probe.out.weight", "probe.out.bias"}, names)

	// evaluation mode uses the running statistics, so a single code is scored deterministically
	net.SetTraining(false)
	x := mat.NewDense(1, 3, []float64{0.1, -0.2, 0.3})
	assert.Equal(t, net.Forward(x).RawRowView(0), net.Forward(x).RawRowView(0))
}

func TestTrainAppliesWeightDecay(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	train, valid, test := separable(rng, 32), separable(rng, 16), separable(rng, 16)
	cfg := DefaultConfig()
	assert.InDelta(t, 1e-4, cfg.WeightDecay, 1e-12)
	cfg.Hidden = 8
	cfg.Epochs = 5
	cfg.DisableProgressBar = true

	plain, err := Train("quality", datasets.Bool, train, valid, test, cfg)
	require.NoError(t, err)
	cfg.WeightDecay = 0.5
	decayed, err := Train("quality", datasets.Bool, train, valid, test, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, plain.History[len(plain.History)-1].Train, decayed.History[len(decayed.History)-1].Train)
}
