// Package optim implements gradient based optimizers, gradient clipping and
// learning rate scheduling over layer parameters.
package optim

import "math"

import "github.com/neurlang/rollvae/layer"

// Optimizer updates a fixed set of parameters from their accumulated gradients
type Optimizer interface {
	ZeroGrad()
	Step()
	LearningRate() float64
	SetLearningRate(lr float64)
}

// Adam is the Adam optimizer with L2 weight decay folded into the gradient
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*layer.Param
	m, v   [][]float64
	t      int
}

// NewAdam creates an Adam optimizer over params with the usual moment coefficients
func NewAdam(params []*layer.Param, lr, weightDecay float64) *Adam {
	a := &Adam{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		params:      params,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, p.Len())
		a.v[i] = make([]float64, p.Len())
	}
	return a
}

// ZeroGrad clears every parameter gradient
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one update
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, p := range a.params {
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j := range value {
			g := grad[j] + a.WeightDecay*value[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			value[j] -= a.LR * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Eps)
		}
	}
}

func (a *Adam) LearningRate() float64 { return a.LR }

func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }
