package model

import "math"
import "math/rand"
import "path/filepath"
import "testing"

import "github.com/pkg/errors"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer/layertest"

func testConfig(kind Kind) Config {
	return Config{Kind: kind, InputSize: 6, Hidden: []int{5}, LatentSize: 3}
}

func TestNewKinds(t *testing.T) {
	x := layertest.Random(rand.New(rand.NewSource(1)), 4, 6)
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(testConfig(kind), rand.New(rand.NewSource(1)))
			require.NoError(t, err)
			assert.Equal(t, kind, m.Kind())

			out := m.Forward(x)
			r, c := out.Latent.Dims()
			assert.Equal(t, [2]int{4, 3}, [2]int{r, c})
			r, c = out.Recon.Dims()
			assert.Equal(t, [2]int{4, 6}, [2]int{r, c})
			for _, v := range out.Recon.RawMatrix().Data {
				assert.True(t, v > 0 && v < 1)
			}
			if kind.Variational() {
				require.NotNil(t, out.Mu)
				require.NotNil(t, out.LogVar)
			} else {
				assert.Nil(t, out.Mu)
				assert.Nil(t, out.LogVar)
			}
			_, isDivergence := m.(Divergence)
			assert.Equal(t, kind == WAE, isDivergence)
		})
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := New(testConfig("gan"), rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = ParseKind("vae-flow")
	assert.NoError(t, err)
	_, err = ParseKind("flow")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(VAE)
	cfg.LatentSize = 0
	assert.Error(t, cfg.Validate())
	cfg = testConfig(VAE)
	cfg.Hidden = []int{4, 0}
	assert.Error(t, cfg.Validate())
	cfg = testConfig(VAE)
	cfg.Dropout = 1
	assert.Error(t, cfg.Validate())
}

// weighted is the scalar sum(a .* b), treating a nil a as zero
func weighted(a, b *mat.Dense) float64 {
	if a == nil {
		return 0
	}
	var s float64
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s += a.At(i, j) * b.At(i, j)
		}
	}
	return s
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			m, err := New(testConfig(kind), rng)
			require.NoError(t, err)

			data := rand.New(rand.NewSource(4))
			x := layertest.Random(data, 3, 6)
			g := Gradients{
				Recon:  layertest.Random(data, 3, 6),
				Mu:     layertest.Random(data, 3, 3),
				LogVar: layertest.Random(data, 3, 3),
				Latent: layertest.Random(data, 3, 3),
				LogDet: []float64{0.8, -0.4, 1.3},
			}
			objective := func() (float64, *Output) {
				rng.Seed(99)
				out := m.Forward(x)
				s := weighted(out.Recon, g.Recon) + weighted(out.Mu, g.Mu) +
					weighted(out.LogVar, g.LogVar) + weighted(out.Latent, g.Latent)
				for i, ld := range out.LogDet {
					s += ld * g.LogDet[i]
				}
				return s, out
			}

			for _, p := range m.Params() {
				p.ZeroGrad()
			}
			_, out := objective()
			m.Backward(out, g)

			const h = 1e-6
			for _, p := range m.Params() {
				data := p.Value.RawMatrix().Data
				grad := p.Grad.RawMatrix().Data
				for i := range data {
					orig := data[i]
					data[i] = orig + h
					plus, _ := objective()
					data[i] = orig - h
					minus, _ := objective()
					data[i] = orig
					numeric := (plus - minus) / (2 * h)
					den := math.Max(1, math.Abs(numeric)+math.Abs(grad[i]))
					assert.InDelta(t, 0, (numeric-grad[i])/den, 1e-5, "%s[%d]", p.Name, i)
				}
			}
		})
	}
}

func TestWassersteinDivergenceGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m, err := New(testConfig(WAE), rng)
	require.NoError(t, err)
	d := m.(Divergence)

	z := layertest.Random(rand.New(rand.NewSource(6)), 5, 3)
	rng.Seed(1)
	value, grad := d.Divergence(&Output{Latent: z})
	assert.False(t, math.IsNaN(value))

	const h = 1e-6
	for i := 0; i < 5; i++ {
		for j := 0; j < 3; j++ {
			orig := z.At(i, j)
			z.Set(i, j, orig+h)
			rng.Seed(1)
			plus, _ := d.Divergence(&Output{Latent: z})
			z.Set(i, j, orig-h)
			rng.Seed(1)
			minus, _ := d.Divergence(&Output{Latent: z})
			z.Set(i, j, orig)
			assert.InDelta(t, (plus-minus)/(2*h), grad.At(i, j), 1e-6)
		}
	}

	single, g := d.Divergence(&Output{Latent: mat.NewDense(1, 3, nil)})
	assert.Zero(t, single)
	assert.True(t, mat.Equal(g, mat.NewDense(1, 3, nil)))
}

func TestLogVarClamp(t *testing.T) {
	s, ok := halfStd(1000)
	assert.False(t, ok)
	assert.False(t, math.IsInf(s, 1))
	s, ok = halfStd(0)
	assert.True(t, ok)
	assert.Equal(t, 1.0, s)
}

func TestTrainingMode(t *testing.T) {
	cfg := testConfig(VAE)
	cfg.Dropout = 0.5
	m, err := New(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.False(t, m.Training())
	m.SetTraining(true)
	assert.True(t, m.Training())
}

func TestCheckpoints(t *testing.T) {
	dir := t.TempDir()
	x := layertest.Random(rand.New(rand.NewSource(2)), 2, 6)
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(testConfig(kind), rand.New(rand.NewSource(1)))
			require.NoError(t, err)
			m.SetTraining(true)

			full := filepath.Join(dir, string(kind), "full.zlib")
			require.NoError(t, SaveFull(full, m))
			loaded, err := LoadFull(full, rand.New(rand.NewSource(9)))
			require.NoError(t, err)
			assert.Equal(t, m.Config(), loaded.Config())
			assert.False(t, loaded.Training())

			z := layertest.Random(rand.New(rand.NewSource(3)), 2, 3)
			assert.True(t, mat.EqualApprox(m.Decode(z), loaded.Decode(z), 1e-12))

			weights := filepath.Join(dir, string(kind), "weights.zlib")
			require.NoError(t, SaveWeights(weights, m))
			other, err := New(testConfig(kind), rand.New(rand.NewSource(77)))
			require.NoError(t, err)
			require.NoError(t, LoadWeights(weights, other))
			a, _, _ := m.Encode(x)
			b, _, _ := other.Encode(x)
			if !kind.Variational() {
				assert.True(t, mat.EqualApprox(a, b, 1e-12))
			}
		})
	}
}

func TestLoadWeightsMismatch(t *testing.T) {
	dir := t.TempDir()
	m, err := New(testConfig(VAE), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	name := filepath.Join(dir, "w.zlib")
	require.NoError(t, SaveWeights(name, m))

	other, err := New(testConfig(AE), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Error(t, LoadWeights(name, other))
	assert.Error(t, LoadWeights(filepath.Join(dir, "missing"), m))
}

func TestMeanCode(t *testing.T) {
	x := layertest.Random(rand.New(rand.NewSource(6)), 4, 6)
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(testConfig(kind), rand.New(rand.NewSource(2)))
			require.NoError(t, err)
			m.SetTraining(true)
			code := m.MeanCode(x)
			assert.True(t, m.Training())
			assert.True(t, mat.Equal(code, m.MeanCode(x)))

			m.SetTraining(false)
			z, mu, _ := m.Encode(x)
			if !kind.Variational() {
				assert.True(t, mat.EqualApprox(code, z, 1e-12))
				return
			}
			if kind == VAE {
				assert.True(t, mat.EqualApprox(code, mu, 1e-12))
				return
			}
			v := m.(*variational)
			assert.True(t, mat.EqualApprox(code, v.flow.Transform(mu), 1e-12))
			assert.False(t, mat.EqualApprox(code, mu, 1e-6), "flow must move the mean")
			assert.False(t, mat.EqualApprox(m.Decode(code), m.Decode(mu), 1e-9))
		})
	}
}

func TestFlowLogDet(t *testing.T) {
	m, err := New(testConfig(VAEFlow), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	out := m.Forward(layertest.Random(rand.New(rand.NewSource(4)), 5, 6))
	require.Len(t, out.LogDet, 5)
	for _, ld := range out.LogDet {
		assert.False(t, math.IsNaN(ld) || math.IsInf(ld, 0))
	}

	m, err = New(testConfig(VAE), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Nil(t, m.Forward(layertest.Random(rand.New(rand.NewSource(4)), 5, 6)).LogDet)
}
