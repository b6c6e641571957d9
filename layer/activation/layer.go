// Package activation implements elementwise nonlinearities
package activation

import "math"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// ReLU is max(0, x)
type ReLU struct {
	x *mat.Dense
}

func (r *ReLU) Forward(x *mat.Dense, training bool) *mat.Dense {
	r.x = x
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	}, x)
	return &y
}

func (r *ReLU) Backward(dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		if r.x.At(i, j) > 0 {
			return v
		}
		return 0
	}, dy)
	return &dx
}

func (r *ReLU) Params() []*layer.Param { return nil }

// LeakyReLU passes negative inputs scaled by Slope
type LeakyReLU struct {
	Slope float64

	x *mat.Dense
}

// NewLeakyReLU uses the conventional 0.01 slope
func NewLeakyReLU() *LeakyReLU {
	return &LeakyReLU{Slope: 0.01}
}

func (r *LeakyReLU) Forward(x *mat.Dense, training bool) *mat.Dense {
	r.x = x
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return r.Slope * v
	}, x)
	return &y
}

func (r *LeakyReLU) Backward(dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		if r.x.At(i, j) > 0 {
			return v
		}
		return r.Slope * v
	}, dy)
	return &dx
}

func (r *LeakyReLU) Params() []*layer.Param { return nil }

// Sigmoid squashes into (0, 1)
type Sigmoid struct {
	y *mat.Dense
}

func (s *Sigmoid) Forward(x *mat.Dense, training bool) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	}, x)
	s.y = &y
	return &y
}

func (s *Sigmoid) Backward(dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		y := s.y.At(i, j)
		return v * y * (1 - y)
	}, dy)
	return &dx
}

func (s *Sigmoid) Params() []*layer.Param { return nil }

// Tanh squashes into (-1, 1)
type Tanh struct {
	y *mat.Dense
}

func (t *Tanh) Forward(x *mat.Dense, training bool) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		return math.Tanh(v)
	}, x)
	t.y = &y
	return &y
}

func (t *Tanh) Backward(dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		y := t.y.At(i, j)
		return v * (1 - y*y)
	}, dy)
	return &dx
}

func (t *Tanh) Params() []*layer.Param { return nil }
