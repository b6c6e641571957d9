package analysis

import "context"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/latent"
import "github.com/neurlang/rollvae/model"

// Trajectory encodes the consecutive bars of one track and places them in the frozen
// projection, one row per bar in track order
func Trajectory(ctx context.Context, m model.Model, track datasets.Dataset, proj *PCA) (*mat.Dense, error) {
	loader, err := datasets.NewSliceLoader(track, 64)
	if err != nil {
		return nil, err
	}
	c, err := latent.Extract(ctx, m, loader, 1)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, ErrTooFewSamples
	}
	return proj.Transform(c.Points())
}
