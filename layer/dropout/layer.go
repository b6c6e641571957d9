// Package dropout implements inverted dropout, active only while training
package dropout

import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// Dropout zeroes each activation with probability Rate during training and rescales
// the survivors by 1/(1-Rate). In evaluation mode it is the identity.
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask *mat.Dense
}

// New creates a dropout layer drawing its masks from rng
func New(rate float64, rng *rand.Rand) (*Dropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, errors.Errorf("New Dropout: rate %v outside [0, 1)", rate)
	}
	return &Dropout{Rate: rate, rng: rng}, nil
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate == 0 {
		d.mask = nil
		return x
	}
	r, c := x.Dims()
	keep := 1 / (1 - d.Rate)
	d.mask = mat.NewDense(r, c, nil)
	m := d.mask.RawMatrix().Data
	for i := range m {
		if d.rng.Float64() >= d.Rate {
			m[i] = keep
		}
	}
	var y mat.Dense
	y.MulElem(x, d.mask)
	return &y
}

func (d *Dropout) Backward(dy *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dy
	}
	var dx mat.Dense
	dx.MulElem(dy, d.mask)
	return &dx
}

func (d *Dropout) Params() []*layer.Param { return nil }
