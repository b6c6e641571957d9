package analysis

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/latent"

// Projection is a PCA fit on the training corpus and applied to every split
type Projection struct {
	PCA   *PCA
	Train *mat.Dense
	Valid *mat.Dense
	Test  *mat.Dense
}

// Project fits on b.Train only; validation and test points are transformed, never fit.
// Empty splits stay nil.
func Project(b *latent.Bundle, components int) (*Projection, error) {
	if b.Train.Len() == 0 {
		return nil, ErrTooFewSamples
	}
	pca, train, err := FitTransformPCA(b.Train.Points(), components)
	if err != nil {
		return nil, err
	}
	p := &Projection{PCA: pca, Train: train}
	for _, split := range []struct {
		dst **mat.Dense
		src *latent.Corpus
	}{{&p.Valid, b.Valid}, {&p.Test, b.Test}} {
		if split.src.Len() == 0 {
			continue
		}
		if *split.dst, err = pca.Transform(split.src.Points()); err != nil {
			return nil, err
		}
	}
	return p, nil
}
