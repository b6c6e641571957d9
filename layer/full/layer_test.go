package full

import "math/rand"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer/layertest"

func TestFullForward(t *testing.T) {
	f := MustNew("fc", 2, 3, rand.New(rand.NewSource(1)))
	f.W.Value = mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	f.B.Value = mat.NewDense(1, 3, []float64{0.5, 0, -0.5})

	y := f.Forward(mat.NewDense(1, 2, []float64{1, 1}), true)
	assert.Equal(t, []float64{5.5, 7, 8.5}, y.RawRowView(0))
}

func TestFullGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	f := MustNew("fc", 4, 3, rng)
	layertest.CheckGradients(t, f, layertest.Random(rng, 5, 4), 1e-6)
}

func TestFullInvalidSize(t *testing.T) {
	_, err := New("fc", 0, 3, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.Panics(t, func() { MustNew("fc", 3, -1, rand.New(rand.NewSource(1))) })
}
