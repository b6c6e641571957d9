// Package batchnorm implements batch normalization over the feature columns of a batch
package batchnorm

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// BatchNorm normalizes every column with the batch statistics while training and with
// running averages of them in evaluation mode, then applies a learned scale and shift.
type BatchNorm struct {
	Gamma *layer.Param // 1 x dim
	Beta  *layer.Param // 1 x dim

	Momentum float64
	Eps      float64

	// running statistics, updated by every training Forward
	Mean []float64
	Var  []float64

	xhat     *mat.Dense
	invStd   []float64
	training bool
}

// New creates a batch normalization of dim features with unit scale and zero shift
func New(name string, dim int) (*BatchNorm, error) {
	if dim <= 0 {
		return nil, errors.Errorf("New BatchNorm: invalid dimension %d", dim)
	}
	b := &BatchNorm{
		Gamma:    layer.NewParam(name+".gamma", 1, dim),
		Beta:     layer.NewParam(name+".beta", 1, dim),
		Momentum: 0.1,
		Eps:      1e-5,
		Mean:     make([]float64, dim),
		Var:      make([]float64, dim),
	}
	for i := 0; i < dim; i++ {
		b.Gamma.Value.Set(0, i, 1)
		b.Var[i] = 1
	}
	return b, nil
}

func (b *BatchNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, dim := x.Dims()
	b.training = training
	b.xhat = mat.NewDense(n, dim, nil)
	b.invStd = make([]float64, dim)
	y := mat.NewDense(n, dim, nil)
	for j := 0; j < dim; j++ {
		mean, variance := b.Mean[j], b.Var[j]
		if training && n > 0 {
			mean, variance = 0, 0
			for i := 0; i < n; i++ {
				mean += x.At(i, j)
			}
			mean /= float64(n)
			for i := 0; i < n; i++ {
				d := x.At(i, j) - mean
				variance += d * d
			}
			variance /= float64(n)

			unbiased := variance
			if n > 1 {
				unbiased = variance * float64(n) / float64(n-1)
			}
			b.Mean[j] += b.Momentum * (mean - b.Mean[j])
			b.Var[j] += b.Momentum * (unbiased - b.Var[j])
		}
		inv := 1 / math.Sqrt(variance+b.Eps)
		b.invStd[j] = inv
		g, s := b.Gamma.Value.At(0, j), b.Beta.Value.At(0, j)
		for i := 0; i < n; i++ {
			h := (x.At(i, j) - mean) * inv
			b.xhat.Set(i, j, h)
			y.Set(i, j, g*h+s)
		}
	}
	return y
}

func (b *BatchNorm) Backward(dy *mat.Dense) *mat.Dense {
	n, dim := dy.Dims()
	dx := mat.NewDense(n, dim, nil)
	for j := 0; j < dim; j++ {
		g := b.Gamma.Value.At(0, j)
		var sum, dot float64
		for i := 0; i < n; i++ {
			d := dy.At(i, j)
			sum += d
			dot += d * b.xhat.At(i, j)
		}
		b.Gamma.Grad.Set(0, j, b.Gamma.Grad.At(0, j)+dot)
		b.Beta.Grad.Set(0, j, b.Beta.Grad.At(0, j)+sum)

		inv := b.invStd[j]
		if !b.training {
			for i := 0; i < n; i++ {
				dx.Set(i, j, dy.At(i, j)*g*inv)
			}
			continue
		}
		// batch statistics depend on every row of the column
		nf := float64(n)
		for i := 0; i < n; i++ {
			dx.Set(i, j, g*inv/nf*(nf*dy.At(i, j)-sum-b.xhat.At(i, j)*dot))
		}
	}
	return dx
}

func (b *BatchNorm) Params() []*layer.Param {
	return []*layer.Param{b.Gamma, b.Beta}
}
