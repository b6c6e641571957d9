// Package planar implements a planar normalizing-flow transform z' = z + û tanh(w.z + b)
package planar

import "math"
import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// Planar is a single planar flow step over vectors of size Dim.
// U is reparameterised to û with w.û = -1 + softplus(w.u) > -1, which keeps the
// transform invertible and its Jacobian determinant positive.
type Planar struct {
	U *layer.Param // 1 x dim
	W *layer.Param // 1 x dim
	B *layer.Param // 1 x 1

	z *mat.Dense
	h []float64
}

// New creates a planar flow with random u and w
func New(name string, dim int, rng *rand.Rand) (*Planar, error) {
	if dim <= 0 {
		return nil, errors.Errorf("New Planar: invalid dimension %d", dim)
	}
	p := &Planar{
		U: layer.NewParam(name+".u", 1, dim),
		W: layer.NewParam(name+".w", 1, dim),
		B: layer.NewParam(name+".b", 1, 1),
	}
	limit := 1 / math.Sqrt(float64(dim))
	for _, v := range [][]float64{p.U.Value.RawRowView(0), p.W.Value.RawRowView(0)} {
		for i := range v {
			v[i] = (2*rng.Float64() - 1) * limit
		}
	}
	return p, nil
}

func softplus(a float64) float64 {
	if a > 30 {
		return a
	}
	return math.Log1p(math.Exp(a))
}

func sigmoid(a float64) float64 {
	return 1 / (1 + math.Exp(-a))
}

// constrained holds û and the scalars it is derived from
type constrained struct {
	uhat []float64
	a    float64 // w.u
	m    float64 // w.û
	c    float64 // m - a
	s    float64 // w.w
}

func (p *Planar) constrain() constrained {
	u := p.U.Value.RawRowView(0)
	w := p.W.Value.RawRowView(0)
	k := constrained{a: floats.Dot(w, u), s: floats.Dot(w, w)}
	k.m = -1 + softplus(k.a)
	k.uhat = append([]float64(nil), u...)
	if k.s > 0 {
		k.c = k.m - k.a
		floats.AddScaled(k.uhat, k.c/k.s, w)
	}
	return k
}

func (p *Planar) apply(z *mat.Dense) (*mat.Dense, []float64) {
	n, dim := z.Dims()
	k := p.constrain()
	w := p.W.Value.RawRowView(0)
	b := p.B.Value.At(0, 0)
	hs := make([]float64, n)
	y := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		row := z.RawRowView(i)
		h := math.Tanh(floats.Dot(w, row) + b)
		hs[i] = h
		out := y.RawRowView(i)
		copy(out, row)
		floats.AddScaled(out, h, k.uhat)
	}
	return y, hs
}

// Forward transforms z and caches what Backward and LogDet need
func (p *Planar) Forward(z *mat.Dense, training bool) *mat.Dense {
	y, h := p.apply(z)
	p.z, p.h = z, h
	return y
}

// Transform is Forward without touching the cache, for inference on the side
func (p *Planar) Transform(z *mat.Dense) *mat.Dense {
	y, _ := p.apply(z)
	return y
}

// LogDet is log|det dz'/dz| = log(1 + (1-h^2) w.û) of every row of the last Forward
func (p *Planar) LogDet() []float64 {
	m := p.constrain().m
	o := make([]float64, len(p.h))
	for i, h := range p.h {
		o[i] = math.Log(1 + (1-h*h)*m)
	}
	return o
}

func (p *Planar) Backward(dy *mat.Dense) *mat.Dense {
	return p.BackwardLogDet(dy, nil)
}

// BackwardLogDet back-propagates dy together with dld, the gradient w.r.t. every
// row's LogDet. A nil dld contributes nothing.
func (p *Planar) BackwardLogDet(dy *mat.Dense, dld []float64) *mat.Dense {
	n, dim := dy.Dims()
	k := p.constrain()
	u := p.U.Value.RawRowView(0)
	w := p.W.Value.RawRowView(0)
	du := p.U.Grad.RawRowView(0)
	dw := p.W.Grad.RawRowView(0)

	duhat := make([]float64, dim)
	var db, dm float64
	dz := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		g := dy.RawRowView(i)
		h := p.h[i]
		d := 1 - h*h
		dh := floats.Dot(g, k.uhat)
		floats.AddScaled(duhat, h, g)
		if dld != nil {
			q := 1 + d*k.m
			dh -= dld[i] * 2 * h * k.m / q
			dm += dld[i] * d / q
		}
		pre := dh * d
		out := dz.RawRowView(i)
		copy(out, g)
		floats.AddScaled(out, pre, w)
		floats.AddScaled(dw, pre, p.z.RawRowView(i))
		db += pre
	}
	p.B.Grad.Set(0, 0, p.B.Grad.At(0, 0)+db)

	// û = u + c(a)/s w with a = w.u, s = w.w and m(a) = -1 + softplus(a)
	sig := sigmoid(k.a)
	da := dm * sig
	floats.Add(du, duhat)
	if k.s > 0 {
		dw2 := floats.Dot(duhat, w)
		da += dw2 / k.s * (sig - 1)
		floats.AddScaled(dw, k.c/k.s, duhat)
		floats.AddScaled(dw, -2*k.c*dw2/(k.s*k.s), w)
	}
	floats.AddScaled(du, da, w)
	floats.AddScaled(dw, da, u)
	return dz
}

func (p *Planar) Params() []*layer.Param {
	return []*layer.Param{p.U, p.W, p.B}
}
