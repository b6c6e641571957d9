package model

import "math"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"
import "github.com/neurlang/rollvae/layer/full"
import "github.com/neurlang/rollvae/layer/planar"

// exp() of the log-variance is only taken inside this range
const (
	minLogVar = -30
	maxLogVar = 20
)

// variational encodes to a diagonal Gaussian and samples the latent by
// reparameterisation, optionally followed by a planar flow
type variational struct {
	*coder
	mu     *full.FullLayer
	logvar *full.FullLayer
	flow   *planar.Planar

	eps *mat.Dense
	lv  *mat.Dense
}

func newVariational(c *coder, flow bool) (*variational, error) {
	v := &variational{coder: c}
	var err error
	if v.mu, err = full.New("mu", c.features, c.cfg.LatentSize, c.rng); err != nil {
		return nil, err
	}
	if v.logvar, err = full.New("logvar", c.features, c.cfg.LatentSize, c.rng); err != nil {
		return nil, err
	}
	if flow {
		if v.flow, err = planar.New("flow", c.cfg.LatentSize, c.rng); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *variational) Kind() Kind { return v.cfg.Kind }

// halfStd returns exp(lv/2) with lv clamped, and whether lv was inside the range
func halfStd(lv float64) (float64, bool) {
	switch {
	case lv < minLogVar:
		return math.Exp(minLogVar / 2), false
	case lv > maxLogVar:
		return math.Exp(maxLogVar / 2), false
	}
	return math.Exp(lv / 2), true
}

func (v *variational) Encode(x *mat.Dense) (latent, mu, logvar *mat.Dense) {
	h := v.encoder.Forward(x)
	mu = v.mu.Forward(h, v.training)
	logvar = v.logvar.Forward(h, v.training)

	n, l := mu.Dims()
	v.eps = mat.NewDense(n, l, nil)
	latent = mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < l; j++ {
			e := v.rng.NormFloat64()
			s, _ := halfStd(logvar.At(i, j))
			v.eps.Set(i, j, e)
			latent.Set(i, j, mu.At(i, j)+s*e)
		}
	}
	v.lv = logvar
	if v.flow != nil {
		latent = v.flow.Forward(latent, v.training)
	}
	return
}

func (v *variational) MeanCode(x *mat.Dense) *mat.Dense {
	defer v.SetTraining(v.training)
	v.SetTraining(false)
	mu := v.mu.Forward(v.encoder.Forward(x), false)
	if v.flow != nil {
		return v.flow.Transform(mu)
	}
	return mu
}

func (v *variational) Forward(x *mat.Dense) *Output {
	z, mu, lv := v.Encode(x)
	out := &Output{Mu: mu, LogVar: lv, Latent: z, Recon: v.Decode(z)}
	if v.flow != nil {
		out.LogDet = v.flow.LogDet()
	}
	return out
}

func (v *variational) Backward(out *Output, g Gradients) {
	dz := v.latentGrad(g)
	n, l := v.eps.Dims()
	if dz == nil {
		dz = mat.NewDense(n, l, nil)
	}
	if v.flow != nil {
		dz = v.flow.BackwardLogDet(dz, g.LogDet)
	}

	dmu := add(mat.DenseCopyOf(dz), g.Mu)
	dlv := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < l; j++ {
			if s, ok := halfStd(v.lv.At(i, j)); ok {
				dlv.Set(i, j, dz.At(i, j)*v.eps.At(i, j)*0.5*s)
			}
		}
	}
	dlv = add(dlv, g.LogVar)

	dh := v.mu.Backward(dmu)
	dh.Add(dh, v.logvar.Backward(dlv))
	v.encoder.Backward(dh)
}

func (v *variational) Params() (o []*layer.Param) {
	o = append(o, v.encoder.Params()...)
	o = append(o, v.mu.Params()...)
	o = append(o, v.logvar.Params()...)
	if v.flow != nil {
		o = append(o, v.flow.Params()...)
	}
	return append(o, v.decoder.Params()...)
}
