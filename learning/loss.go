package learning

import "math"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/model"

// Loss is the composite objective of one batch
type Loss struct {
	Total float64
	Recon float64
	KL    float64 // KL divergence, or the model's own divergence term
}

// Finite reports whether every component is a number
func (l Loss) Finite() bool {
	return finite(l.Total) && finite(l.Recon) && finite(l.KL)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MSE is the mean squared error over all elements and its gradient w.r.t. recon
func MSE(recon, x *mat.Dense) (float64, *mat.Dense) {
	r, c := recon.Dims()
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)
	grad.Sub(recon, x)
	var sum float64
	for _, v := range grad.RawMatrix().Data {
		sum += v * v
	}
	grad.Scale(2/n, grad)
	return sum / n, grad
}

// KLDivergence is -1/2 sum(1 + lv - mu^2 - exp(lv)) summed over batch and latent
// dimensions, with its gradients w.r.t. mu and lv
func KLDivergence(mu, logvar *mat.Dense) (kl float64, dmu, dlv *mat.Dense) {
	r, c := mu.Dims()
	dmu = mat.DenseCopyOf(mu)
	dlv = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m, lv := mu.At(i, j), logvar.At(i, j)
			e := math.Exp(lv)
			kl += 1 + lv - m*m - e
			dlv.Set(i, j, 0.5*(e-1))
		}
	}
	return -0.5 * kl, dmu, dlv
}

// Compose evaluates recon + beta * divergence for a forward pass of m and returns
// the gradients to back-propagate. With a flow the divergence is the Gaussian KL
// minus the summed log-determinant. Deterministic models without a divergence of
// their own contribute no regularizer.
func Compose(m model.Model, out *model.Output, x *mat.Dense, beta float64) (Loss, model.Gradients) {
	var loss Loss
	var g model.Gradients
	loss.Recon, g.Recon = MSE(out.Recon, x)

	if d, ok := m.(model.Divergence); ok {
		var dz *mat.Dense
		loss.KL, dz = d.Divergence(out)
		dz.Scale(beta, dz)
		g.Latent = dz
	} else if out.Mu != nil {
		loss.KL, g.Mu, g.LogVar = KLDivergence(out.Mu, out.LogVar)
		g.Mu.Scale(beta, g.Mu)
		g.LogVar.Scale(beta, g.LogVar)
		if out.LogDet != nil {
			// the flow's volume change is credited against the base KL
			g.LogDet = make([]float64, len(out.LogDet))
			for i, ld := range out.LogDet {
				loss.KL -= ld
				g.LogDet[i] = -beta
			}
		}
	}
	loss.Total = loss.Recon + beta*loss.KL
	return loss, g
}
