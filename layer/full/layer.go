// Package full implements a fully connected (affine) layer
package full

import "math"
import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// FullLayer computes y = x W + b for a batch x (one sample per row).
type FullLayer struct {
	W *layer.Param // in x out
	B *layer.Param // 1 x out

	x *mat.Dense
}

// MustNew creates a new full layer with in inputs and out outputs
func MustNew(name string, in, out int, rng *rand.Rand) *FullLayer {
	o, err := New(name, in, out, rng)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new full layer with in inputs and out outputs. Weights are drawn
// Xavier-uniform from rng, biases start at zero.
func New(name string, in, out int, rng *rand.Rand) (o *FullLayer, err error) {
	if in <= 0 || out <= 0 {
		return nil, errors.Errorf("New Full: invalid size %d x %d", in, out)
	}
	o = new(FullLayer)
	o.W = layer.NewParam(name+".weight", in, out)
	o.B = layer.NewParam(name+".bias", 1, out)
	limit := math.Sqrt(6 / float64(in+out))
	data := o.W.Value.RawMatrix().Data
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * limit
	}
	return
}

// In is the input width
func (f *FullLayer) In() int {
	r, _ := f.W.Value.Dims()
	return r
}

// Out is the output width
func (f *FullLayer) Out() int {
	_, c := f.W.Value.Dims()
	return c
}

// Forward computes the affine transform of x
func (f *FullLayer) Forward(x *mat.Dense, training bool) *mat.Dense {
	f.x = x
	n, _ := x.Dims()
	y := mat.NewDense(n, f.Out(), nil)
	y.Mul(x, f.W.Value)
	b := f.B.Value.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(y.RawRowView(i), b)
	}
	return y
}

// Backward accumulates dW = x^T dy, db = sum_rows(dy) and returns dy W^T
func (f *FullLayer) Backward(dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(f.x.T(), dy)
	f.W.Grad.Add(f.W.Grad, &dw)

	n, _ := dy.Dims()
	db := f.B.Grad.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(db, dy.RawRowView(i))
	}

	dx := mat.NewDense(n, f.In(), nil)
	dx.Mul(dy, f.W.Value.T())
	return dx
}

// Params returns the weight and bias
func (f *FullLayer) Params() []*layer.Param {
	return []*layer.Param{f.W, f.B}
}
