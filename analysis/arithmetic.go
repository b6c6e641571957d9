package analysis

import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/model"

// ArithmeticLabels name the rows of an Arithmetic result
var ArithmeticLabels = []string{"A", "B", "C", "D", "A-B", "A-B+C", "A-B+D"}

// Arithmetic is one latent vector arithmetic experiment
type Arithmetic struct {
	// Indices are the sampled corpus positions of A, B, C and D
	Indices [4]int
	// Latent has one row per label
	Latent *mat.Dense
	// Decoded has the reconstruction of every Latent row
	Decoded *mat.Dense
}

// VectorArithmetic samples four bars of d with rng, encodes them to their mean codes
// (posterior means carried through the flow, latent codes for deterministic models)
// and decodes A, B, C, D, A-B, A-B+C and
// A-B+D. The result depends only on the sampled indices.
func VectorArithmetic(m model.Model, d datasets.Dataset, rng *rand.Rand) (*Arithmetic, error) {
	if d.Len() == 0 {
		return nil, errors.Wrap(ErrTooFewSamples, "vector arithmetic on an empty corpus")
	}
	a := &Arithmetic{}
	x := mat.NewDense(4, d.Shape.Size(), nil)
	for i := range a.Indices {
		a.Indices[i] = rng.Intn(d.Len())
		x.SetRow(i, d.Samples[a.Indices[i]])
	}

	m.SetTraining(false)
	z := m.MeanCode(x)
	_, l := z.Dims()
	a.Latent = mat.NewDense(len(ArithmeticLabels), l, nil)
	for i := 0; i < 4; i++ {
		a.Latent.SetRow(i, z.RawRowView(i))
	}
	for k := 0; k < l; k++ {
		diff := z.At(0, k) - z.At(1, k)
		a.Latent.Set(4, k, diff)
		a.Latent.Set(5, k, diff+z.At(2, k))
		a.Latent.Set(6, k, diff+z.At(3, k))
	}
	a.Decoded = m.Decode(a.Latent)
	return a, nil
}
