// Package layertest provides finite-difference gradient checks for layer implementations
package layertest

import "math"
import "math/rand"
import "testing"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

const step = 1e-6

// Random returns an r x c matrix with entries uniform in [-1, 1)
func Random(rng *rand.Rand, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return m
}

// projection is the scalar sum(forward(x) * r) whose gradient is Backward(r)
func projection(l layer.Layer, x, r *mat.Dense) float64 {
	y := l.Forward(x, false)
	var s float64
	rows, cols := y.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s += y.At(i, j) * r.At(i, j)
		}
	}
	return s
}

// CheckGradients compares the analytic input and parameter gradients of l at x
// against central finite differences, failing t when the relative error exceeds tol.
func CheckGradients(t testing.TB, l layer.Layer, x *mat.Dense, tol float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))

	y := l.Forward(x, false)
	rows, cols := y.Dims()
	r := Random(rng, rows, cols)
	for _, p := range l.Params() {
		p.ZeroGrad()
	}
	dx := l.Backward(r)

	xr, xc := x.Dims()
	for i := 0; i < xr; i++ {
		for j := 0; j < xc; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+step)
			plus := projection(l, x, r)
			x.Set(i, j, orig-step)
			minus := projection(l, x, r)
			x.Set(i, j, orig)
			compare(t, "input", i, j, dx.At(i, j), (plus-minus)/(2*step), tol)
		}
	}

	for _, p := range l.Params() {
		pr, pc := p.Value.Dims()
		for i := 0; i < pr; i++ {
			for j := 0; j < pc; j++ {
				orig := p.Value.At(i, j)
				p.Value.Set(i, j, orig+step)
				plus := projection(l, x, r)
				p.Value.Set(i, j, orig-step)
				minus := projection(l, x, r)
				p.Value.Set(i, j, orig)
				compare(t, p.Name, i, j, p.Grad.At(i, j), (plus-minus)/(2*step), tol)
			}
		}
	}
}

func compare(t testing.TB, what string, i, j int, analytic, numeric, tol float64) {
	t.Helper()
	den := math.Max(1, math.Abs(analytic)+math.Abs(numeric))
	if math.Abs(analytic-numeric)/den > tol {
		t.Errorf("%s[%d,%d]: analytic %v numeric %v", what, i, j, analytic, numeric)
	}
}
