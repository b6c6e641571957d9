package analysis

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/model"

// Traversal varies one dimension at a time around a base point
type Traversal struct {
	Steps int
	Span  float64 // offsets cover [-Span, Span]
}

func DefaultTraversal() Traversal {
	return Traversal{Steps: 8, Span: 3}
}

// Offsets are the evenly spaced values added to the traversed dimension
func (t Traversal) Offsets() []float64 {
	if t.Steps == 1 {
		return []float64{0}
	}
	o := make([]float64, t.Steps)
	for i := range o {
		o[i] = -t.Span + 2*t.Span*float64(i)/float64(t.Steps-1)
	}
	return o
}

// Evaluate decodes, for every dimension in dims, Steps variants of base that differ
// only along that dimension. With a projection the base is a latent code varied along
// projected axes and mapped back through InverseTransform; without one dims index raw
// latent axes. It returns one Steps x input matrix per dimension.
func (t Traversal) Evaluate(m model.Model, base []float64, dims []int, proj *PCA) ([]*mat.Dense, error) {
	if t.Steps <= 0 {
		return nil, errors.Errorf("traversal: %d steps", t.Steps)
	}
	latentSize := m.Config().LatentSize
	if len(base) != latentSize {
		return nil, errors.Wrapf(ErrDimensionMismatch, "traversal base of %d values for latent size %d", len(base), latentSize)
	}
	origin := mat.NewDense(1, latentSize, append([]float64(nil), base...))
	width := latentSize
	if proj != nil {
		var err error
		if origin, err = proj.Transform(origin); err != nil {
			return nil, err
		}
		width = proj.Components()
	}

	m.SetTraining(false)
	offsets := t.Offsets()
	out := make([]*mat.Dense, 0, len(dims))
	for _, dim := range dims {
		if dim < 0 || dim >= width {
			return nil, errors.Wrapf(ErrDimensionMismatch, "traversal of dimension %d out of %d", dim, width)
		}
		z := mat.NewDense(len(offsets), width, nil)
		for i, o := range offsets {
			z.SetRow(i, origin.RawRowView(0))
			z.Set(i, dim, z.At(i, dim)+o)
		}
		if proj != nil {
			var err error
			if z, err = proj.InverseTransform(z); err != nil {
				return nil, err
			}
		}
		out = append(out, m.Decode(z))
	}
	return out, nil
}
