package model

import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

// wasserstein is a deterministic autoencoder regularized by the maximum mean discrepancy
// between its latent codes and samples of the standard normal prior
type wasserstein struct {
	*deterministic
}

// imq is the inverse multiquadratic kernel c/(c+|a-b|^2). It returns the kernel value and
// the coefficient k' such that dk/da = k' (a-b).
func imq(c float64, a, b, diff []float64) (k, coef float64) {
	copy(diff, a)
	floats.Sub(diff, b)
	d := c + floats.Dot(diff, diff)
	return c / d, -2 * c / (d * d)
}

// Divergence computes the unbiased MMD estimate against a fresh prior sample
func (w *wasserstein) Divergence(out *Output) (float64, *mat.Dense) {
	z := out.Latent
	n, l := z.Dims()
	grad := mat.NewDense(n, l, nil)
	if n < 2 {
		return 0, grad
	}
	prior := mat.NewDense(n, l, nil)
	for i, data := 0, prior.RawMatrix().Data; i < len(data); i++ {
		data[i] = w.rng.NormFloat64()
	}

	c := 2 * float64(l)
	diff := make([]float64, l)
	pairs := float64(n * (n - 1))
	cross := float64(n * n)

	var zz, pp, zp float64
	for i := 0; i < n; i++ {
		zi := z.RawRowView(i)
		gi := grad.RawRowView(i)
		for j := 0; j < n; j++ {
			if i != j {
				k, coef := imq(c, zi, z.RawRowView(j), diff)
				zz += k
				// both (i,j) and (j,i) terms depend on zi
				floats.AddScaled(gi, 2*coef/pairs, diff)

				k, _ = imq(c, prior.RawRowView(i), prior.RawRowView(j), diff)
				pp += k
			}
			k, coef := imq(c, zi, prior.RawRowView(j), diff)
			zp += k
			floats.AddScaled(gi, -2*coef/cross, diff)
		}
	}
	return zz/pairs + pp/pairs - 2*zp/cross, grad
}
