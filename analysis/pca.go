// Package analysis implements read-only analyses over frozen latent corpora:
// projections, feature colouring, latent traversals and vector arithmetic.
package analysis

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/stat"

var (
	// ErrDimensionMismatch is returned when data does not match a fitted transform
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrTooFewSamples is returned when a fit has fewer than two samples
	ErrTooFewSamples = errors.New("too few samples")
)

// PCA is a principal component projection. It is fit once on a reference corpus
// and only applied to others.
type PCA struct {
	mean    []float64
	vectors *mat.Dense // dims x components
	vars    []float64
}

// FitPCA fits the first components principal axes of the rows of x.
// components <= 0 keeps every axis.
func FitPCA(x mat.Matrix, components int) (*PCA, error) {
	n, d := x.Dims()
	if n < 2 {
		return nil, errors.Wrapf(ErrTooFewSamples, "pca on %d samples", n)
	}
	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return nil, errors.New("pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, avail := vecs.Dims()
	if components <= 0 {
		components = avail
	}
	if components > avail {
		return nil, errors.Wrapf(ErrDimensionMismatch, "pca: %d components from %d samples of %d dimensions", components, n, d)
	}

	p := &PCA{
		mean:    make([]float64, d),
		vectors: mat.DenseCopyOf(vecs.Slice(0, d, 0, components)),
		vars:    pc.VarsTo(nil)[:components],
	}
	for j := 0; j < d; j++ {
		p.mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	return p, nil
}

// Dims is the input dimensionality the projection was fit on
func (p *PCA) Dims() int {
	return len(p.mean)
}

// Components is the output dimensionality
func (p *PCA) Components() int {
	_, c := p.vectors.Dims()
	return c
}

// ExplainedVariance returns the variance along each kept axis
func (p *PCA) ExplainedVariance() []float64 {
	return append([]float64(nil), p.vars...)
}

// Transform centres x with the fitted mean and projects it on the kept axes
func (p *PCA) Transform(x mat.Matrix) (*mat.Dense, error) {
	n, d := x.Dims()
	if d != p.Dims() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "pca fit on %d dimensions applied to %d", p.Dims(), d)
	}
	centred := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			centred.Set(i, j, x.At(i, j)-p.mean[j])
		}
	}
	var out mat.Dense
	out.Mul(centred, p.vectors)
	return &out, nil
}

// InverseTransform maps projected points back to the input space
func (p *PCA) InverseTransform(y mat.Matrix) (*mat.Dense, error) {
	n, c := y.Dims()
	if c != p.Components() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "pca with %d components inverted on %d", p.Components(), c)
	}
	out := mat.NewDense(n, p.Dims(), nil)
	out.Mul(y, p.vectors.T())
	for i := 0; i < n; i++ {
		for j, m := range p.mean {
			out.Set(i, j, out.At(i, j)+m)
		}
	}
	return out, nil
}

// FitTransformPCA fits on x and returns the projection of x itself
func FitTransformPCA(x mat.Matrix, components int) (*PCA, *mat.Dense, error) {
	p, err := FitPCA(x, components)
	if err != nil {
		return nil, nil, err
	}
	y, err := p.Transform(x)
	return p, y, err
}
