package feedforward

import "bytes"
import "math/rand"
import "os"
import "path/filepath"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer/activation"
import "github.com/neurlang/rollvae/layer/layertest"

func small(seed int64) *FeedforwardNetwork {
	rng := rand.New(rand.NewSource(seed))
	var net FeedforwardNetwork
	if err := net.NewHidden("l1", 4, 6, 0, rng); err != nil {
		panic(err)
	}
	net.NewFull("l2", 6, 2, rng)
	net.NewLayer(&activation.Sigmoid{})
	return &net
}

// networkLayer lets the gradient checker treat a whole network as one layer
type networkLayer struct{ *FeedforwardNetwork }

func (n networkLayer) Forward(x *mat.Dense, training bool) *mat.Dense {
	return n.FeedforwardNetwork.Forward(x)
}

func TestNetworkGradients(t *testing.T) {
	net := small(1)
	layertest.CheckGradients(t, networkLayer{net}, layertest.Random(rand.New(rand.NewSource(2)), 3, 4), 1e-6)
}

func TestNetworkLayout(t *testing.T) {
	net := small(1)
	assert.Equal(t, 4, net.Len())
	assert.Len(t, net.Params(), 4)
	assert.Nil(t, net.GetLayer(4))
	assert.False(t, net.Training())
	net.SetTraining(true)
	assert.True(t, net.Training())

	var withDropout FeedforwardNetwork
	require.NoError(t, withDropout.NewHidden("h", 2, 2, 0.2, rand.New(rand.NewSource(1))))
	assert.Equal(t, 3, withDropout.Len())
}

func TestWeightsRoundTrip(t *testing.T) {
	a, b := small(1), small(2)
	var buf bytes.Buffer
	require.NoError(t, WriteZlibWeights(&buf, a.Params()))
	require.NoError(t, ReadZlibWeights(&buf, b.Params()))
	for i, p := range a.Params() {
		assert.True(t, mat.Equal(p.Value, b.Params()[i].Value), p.Name)
	}

	x := layertest.Random(rand.New(rand.NewSource(3)), 2, 4)
	assert.True(t, mat.Equal(a.Forward(x), b.Forward(x)))
}

func TestWeightsShapeMismatch(t *testing.T) {
	a := small(1)
	rng := rand.New(rand.NewSource(1))
	var other FeedforwardNetwork
	require.NoError(t, other.NewHidden("l1", 4, 5, 0, rng))
	other.NewFull("l2", 5, 2, rng)

	var buf bytes.Buffer
	require.NoError(t, WriteZlibWeights(&buf, a.Params()))
	assert.Error(t, ReadZlibWeights(&buf, other.Params()))
}

func TestWeightsFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "nested", "weights.json.zlib")
	a, b := small(1), small(9)
	require.NoError(t, a.WriteZlibWeightsToFile(name))
	require.NoError(t, b.ReadZlibWeightsFromFile(name))
	assert.True(t, mat.Equal(a.Params()[0].Value, b.Params()[0].Value))

	entries, err := os.ReadDir(filepath.Dir(name))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}
