// Package latent materializes the latent codes of trained models over whole splits
package latent

import "context"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/cache"
import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/model"

// Corpus holds one row per sample in loader order. Mu and LogVar are nil for
// deterministic models; everything is nil for an empty split.
type Corpus struct {
	Latent *mat.Dense
	Mu     *mat.Dense
	LogVar *mat.Dense

	// Code is the model's MeanCode, the deterministic point Decode understands
	Code *mat.Dense
}

func (c *Corpus) Len() int {
	if c == nil || c.Latent == nil {
		return 0
	}
	r, _ := c.Latent.Dims()
	return r
}

// Points is the representation analyses run on: the mean codes when extracted,
// otherwise the posterior means when present, otherwise the latent codes
func (c *Corpus) Points() *mat.Dense {
	if c.Code != nil {
		return c.Code
	}
	if c.Mu != nil {
		return c.Mu
	}
	return c.Latent
}

// Extract encodes every batch of loader with m in evaluation mode
func Extract(ctx context.Context, m model.Model, loader datasets.Loader, prefetch int) (*Corpus, error) {
	m.SetTraining(false)
	var latent, mu, logvar, code []*mat.Dense
	for x := range datasets.Prefetch(ctx, loader, prefetch) {
		z, u, v := m.Encode(x)
		latent = append(latent, mat.DenseCopyOf(z))
		code = append(code, m.MeanCode(x))
		if u != nil {
			mu = append(mu, mat.DenseCopyOf(u))
			logvar = append(logvar, mat.DenseCopyOf(v))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &Corpus{Latent: stack(latent), Mu: stack(mu), LogVar: stack(logvar), Code: stack(code)}
	if c.Len() != loader.Len() {
		return nil, errors.Errorf("latent: extracted %d rows from %d samples", c.Len(), loader.Len())
	}
	return c, nil
}

// stack concatenates row blocks in order, nil when there are no rows
func stack(blocks []*mat.Dense) *mat.Dense {
	var rows, cols int
	for _, b := range blocks {
		r, c := b.Dims()
		rows += r
		cols = c
	}
	if rows == 0 {
		return nil
	}
	out := mat.NewDense(rows, cols, nil)
	at := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		out.Slice(at, at+r, 0, cols).(*mat.Dense).Copy(b)
		at += r
	}
	return out
}

// Bundle is the latent corpus of all three splits
type Bundle struct {
	Train *Corpus
	Valid *Corpus
	Test  *Corpus
}

// Key identifies the model and data a Bundle was extracted from. Epoch 0 names the
// best validation model of the run.
type Key struct {
	Dataset  datasets.Key      `json:"dataset"`
	Model    model.Config      `json:"model"`
	Training learning.Schedule `json:"training"`
	Seed     int64             `json:"seed"`
	Epoch    int               `json:"epoch"`
}

// LoadOrExtract returns the bundle cached under key, extracting and caching it on a miss
func LoadOrExtract(ctx context.Context, store *cache.Store, key Key, m model.Model,
	train, valid, test datasets.Loader) (*Bundle, error) {

	var b Bundle
	err := store.Load(key, &b)
	if err == nil {
		log.WithFields(log.Fields{"model": key.Model.Kind, "train": b.Train.Len()}).Info("latent corpus loaded from cache")
		return &b, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, err
	}
	for _, split := range []struct {
		dst    **Corpus
		loader datasets.Loader
	}{{&b.Train, train}, {&b.Valid, valid}, {&b.Test, test}} {
		if *split.dst, err = Extract(ctx, m, split.loader, 2); err != nil {
			return nil, err
		}
	}
	if err := store.Save(key, &b); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"model": key.Model.Kind,
		"train": b.Train.Len(),
		"valid": b.Valid.Len(),
		"test":  b.Test.Len(),
	}).Info("latent corpus extracted")
	return &b, nil
}

// VarianceMeans averages the log-variance of every latent dimension over all splits.
// It is nil for deterministic models.
func VarianceMeans(b *Bundle) []float64 {
	var sums []float64
	var n int
	for _, c := range []*Corpus{b.Train, b.Valid, b.Test} {
		if c == nil || c.LogVar == nil {
			continue
		}
		r, cols := c.LogVar.Dims()
		if sums == nil {
			sums = make([]float64, cols)
		}
		for i := 0; i < r; i++ {
			for j := 0; j < cols; j++ {
				sums[j] += c.LogVar.At(i, j)
			}
		}
		n += r
	}
	for j := range sums {
		sums[j] /= float64(n)
	}
	return sums
}
