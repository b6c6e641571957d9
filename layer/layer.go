// Package layer defines the differentiable layer interface and its trainable parameters
package layer

import "gonum.org/v1/gonum/mat"

// Layer is one differentiable stage of a network. Forward caches whatever Backward needs,
// so Backward must follow the Forward whose output it differentiates.
type Layer interface {

	// Forward computes the layer output for a batch (one sample per row).
	// Training-only behaviour is enabled when training is true.
	Forward(x *mat.Dense, training bool) *mat.Dense

	// Backward accumulates parameter gradients and returns the gradient w.r.t. the input.
	Backward(dy *mat.Dense) *mat.Dense

	// Params returns the trainable parameters, nil if there are none.
	Params() []*Param
}

// Param is a trainable matrix together with its accumulated gradient
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zero valued r x c parameter
func NewParam(name string, r, c int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// ZeroGrad clears the accumulated gradient
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Len is the number of scalars held by the parameter
func (p *Param) Len() int {
	r, c := p.Value.Dims()
	return r * c
}

// Accumulate adds g into dst in place. A nil g is a no-op.
func Accumulate(dst, g *mat.Dense) {
	if g == nil {
		return
	}
	dst.Add(dst, g)
}
