package model

import "io"
import "math/rand"
import "os"

import "github.com/pkg/errors"

import "github.com/neurlang/rollvae/net/feedforward"

// artifact is the full-model file: enough to rebuild the model without its config
type artifact struct {
	Config  Config                `json:"config"`
	Weights []feedforward.Weights `json:"weights"`
}

// SaveFull writes the architecture and weights of m to name
func SaveFull(name string, m Model) error {
	a := artifact{Config: m.Config(), Weights: feedforward.ExportWeights(m.Params())}
	return feedforward.WriteFile(name, func(w io.Writer) error {
		return feedforward.WriteZlibJSON(w, a)
	})
}

// LoadFull rebuilds a model saved by SaveFull. The model starts in evaluation mode.
func LoadFull(name string, rng *rand.Rand) (Model, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var a artifact
	if err := feedforward.ReadZlibJSON(file, &a); err != nil {
		return nil, errors.Wrapf(err, "read model %s", name)
	}
	m, err := New(a.Config, rng)
	if err != nil {
		return nil, err
	}
	if err := feedforward.ImportWeights(m.Params(), a.Weights); err != nil {
		return nil, errors.Wrapf(err, "load model %s", name)
	}
	m.SetTraining(false)
	return m, nil
}

// SaveWeights writes only the parameter values of m
func SaveWeights(name string, m Model) error {
	return feedforward.WriteZlibWeightsToFile(name, m.Params())
}

// LoadWeights loads parameter values saved by SaveWeights into an existing model
func LoadWeights(name string, m Model) error {
	return errors.Wrapf(feedforward.ReadZlibWeightsFromFile(name, m.Params()), "load weights %s", name)
}
