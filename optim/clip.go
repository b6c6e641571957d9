package optim

import "math"

import "github.com/neurlang/rollvae/layer"

// ClipGradNorm rescales all gradients together so that their global L2 norm is at most
// maxNorm. It returns the norm measured before clipping.
func ClipGradNorm(params []*layer.Param, maxNorm float64) float64 {
	var sum float64
	for _, p := range params {
		for _, g := range p.Grad.RawMatrix().Data {
			sum += g * g
		}
	}
	norm := math.Sqrt(sum)
	if norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, p := range params {
			p.Grad.Scale(scale, p.Grad)
		}
	}
	return norm
}
