package analysis

import "math"
import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/parallel"

// TSNE is an exact t-distributed stochastic neighbour embedding. It has no way to
// place new points: every corpus is embedded by its own Embed call.
type TSNE struct {
	Dims         int
	Perplexity   float64
	Iterations   int
	LearningRate float64
	Seed         int64
	Threads      int
}

// DefaultTSNE embeds into 3 dimensions
func DefaultTSNE() TSNE {
	return TSNE{Dims: 3, Perplexity: 30, Iterations: 1000, LearningRate: 200, Seed: 1, Threads: 4}
}

const (
	exaggeration     = 12
	exaggerationIter = 250
)

// Embed maps the rows of x to t.Dims dimensions
func (t TSNE) Embed(x mat.Matrix) (*mat.Dense, error) {
	n, _ := x.Dims()
	if n < 2 {
		return nil, errors.Wrapf(ErrTooFewSamples, "t-sne on %d samples", n)
	}
	if t.Dims <= 0 {
		return nil, errors.Errorf("t-sne: %d output dimensions", t.Dims)
	}
	perplexity := math.Min(t.Perplexity, float64(n-1)/3)
	if perplexity < 1 {
		perplexity = 1
	}
	p := t.affinities(x, perplexity)

	rng := rand.New(rand.NewSource(t.Seed))
	y := mat.NewDense(n, t.Dims, nil)
	for i, data := 0, y.RawMatrix().Data; i < len(data); i++ {
		data[i] = 1e-4 * rng.NormFloat64()
	}
	update := mat.NewDense(n, t.Dims, nil)
	gains := mat.NewDense(n, t.Dims, nil)
	for i, data := 0, gains.RawMatrix().Data; i < len(data); i++ {
		data[i] = 1
	}
	num := mat.NewDense(n, n, nil)
	grad := mat.NewDense(n, t.Dims, nil)

	for iter := 0; iter < t.Iterations; iter++ {
		scale, momentum := 1.0, 0.8
		if iter < exaggerationIter {
			scale, momentum = exaggeration, 0.5
		}

		// Student-t kernel between all embedded pairs
		var sums = make([]float64, n)
		parallel.ForEach(n, t.Threads, func(i int) {
			yi := y.RawRowView(i)
			row := num.RawRowView(i)
			for j := 0; j < n; j++ {
				if i == j {
					row[j] = 0
					continue
				}
				d := floats.Distance(yi, y.RawRowView(j), 2)
				row[j] = 1 / (1 + d*d)
				sums[i] += row[j]
			}
		})
		z := floats.Sum(sums)

		parallel.ForEach(n, t.Threads, func(i int) {
			yi := y.RawRowView(i)
			gi := grad.RawRowView(i)
			for k := range gi {
				gi[k] = 0
			}
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				w := num.At(i, j)
				c := 4 * (scale*p.At(i, j) - w/z) * w
				yj := y.RawRowView(j)
				for k := range gi {
					gi[k] += c * (yi[k] - yj[k])
				}
			}
		})

		g, u, gn := grad.RawMatrix().Data, update.RawMatrix().Data, gains.RawMatrix().Data
		for k := range g {
			if (g[k] > 0) != (u[k] > 0) {
				gn[k] += 0.2
			} else {
				gn[k] *= 0.8
			}
			if gn[k] < 0.01 {
				gn[k] = 0.01
			}
			u[k] = momentum*u[k] - t.LearningRate*gn[k]*g[k]
		}
		y.Add(y, update)
		centre(y)
	}
	return y, nil
}

// affinities returns the symmetric joint probabilities of the input points, each
// conditional distribution calibrated to the given perplexity
func (t TSNE) affinities(x mat.Matrix, perplexity float64) *mat.Dense {
	n, d := x.Dims()
	dist := mat.NewDense(n, n, nil)
	parallel.ForEach(n, t.Threads, func(i int) {
		for j := 0; j < n; j++ {
			var s float64
			for k := 0; k < d; k++ {
				v := x.At(i, k) - x.At(j, k)
				s += v * v
			}
			dist.Set(i, j, s)
		}
	})

	cond := mat.NewDense(n, n, nil)
	target := math.Log(perplexity)
	parallel.ForEach(n, t.Threads, func(i int) {
		row := cond.RawRowView(i)
		beta, lo, hi := 1.0, 0.0, math.Inf(1)
		for step := 0; step < 64; step++ {
			var sum, weighted float64
			for j := 0; j < n; j++ {
				if i == j {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-beta * dist.At(i, j))
				sum += row[j]
				weighted += dist.At(i, j) * row[j]
			}
			if sum == 0 {
				sum = 1e-12
			}
			entropy := math.Log(sum) + beta*weighted/sum
			floats.Scale(1/sum, row)
			diff := entropy - target
			if math.Abs(diff) < 1e-5 {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				beta = (beta + lo) / 2
			}
		}
	})

	p := mat.NewDense(n, n, nil)
	p.Add(cond, cond.T())
	p.Scale(1/(2*float64(n)), p)
	for i, data := 0, p.RawMatrix().Data; i < len(data); i++ {
		data[i] = math.Max(data[i], 1e-12)
	}
	return p
}

func centre(y *mat.Dense) {
	n, c := y.Dims()
	for k := 0; k < c; k++ {
		var m float64
		for i := 0; i < n; i++ {
			m += y.At(i, k)
		}
		m /= float64(n)
		for i := 0; i < n; i++ {
			y.Set(i, k, y.At(i, k)-m)
		}
	}
}
