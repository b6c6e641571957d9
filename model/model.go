// Package model implements the encoder/decoder variants trained over flattened piano rolls:
// a plain autoencoder, a variational autoencoder, a variational autoencoder with a planar
// flow and a Wasserstein autoencoder, all behind one Model interface.
package model

import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// ErrUnknownKind is returned when a model selector names no known variant
var ErrUnknownKind = errors.New("unknown model kind")

// Kind selects a model variant
type Kind string

const (
	AE      Kind = "ae"
	VAE     Kind = "vae"
	VAEFlow Kind = "vae-flow"
	WAE     Kind = "wae"
)

// Kinds lists every supported variant
var Kinds = []Kind{AE, VAE, VAEFlow, WAE}

// ParseKind resolves a selector string
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Variational reports whether the variant produces posterior parameters
func (k Kind) Variational() bool {
	return k == VAE || k == VAEFlow
}

// Config fully determines a model's architecture
type Config struct {
	Kind       Kind    `json:"kind"`
	InputSize  int     `json:"input_size"`
	Hidden     []int   `json:"hidden"`
	LatentSize int     `json:"latent_size"`
	Dropout    float64 `json:"dropout"`
}

// Validate checks sizes and the kind
func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.InputSize <= 0 || c.LatentSize <= 0 {
		return errors.Errorf("model: input size %d and latent size %d must be positive", c.InputSize, c.LatentSize)
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return errors.Errorf("model: hidden size %d must be positive", h)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return errors.Errorf("model: dropout %v outside [0, 1)", c.Dropout)
	}
	return nil
}

// Output is the result of a forward pass. Mu and LogVar are nil for deterministic variants.
type Output struct {
	Mu     *mat.Dense
	LogVar *mat.Dense
	Latent *mat.Dense
	Recon  *mat.Dense

	// LogDet is the per-sample log|det| of the flow, nil without one
	LogDet []float64
}

// Gradients of a scalar loss w.r.t. the forward outputs. Nil entries contribute nothing.
type Gradients struct {
	Recon  *mat.Dense
	Mu     *mat.Dense
	LogVar *mat.Dense
	Latent *mat.Dense
	LogDet []float64
}

// Model is the capability shared by every variant
type Model interface {
	Kind() Kind
	Config() Config

	// Forward encodes and decodes x, caching activations for Backward
	Forward(x *mat.Dense) *Output

	// Encode maps x to (latent, mu, logvar)
	Encode(x *mat.Dense) (latent, mu, logvar *mat.Dense)

	// MeanCode is the deterministic code of x in the space Decode reads: the posterior
	// mean pushed through the flow when there is one, the latent code otherwise.
	// It always runs in evaluation mode and must not sit between Forward and Backward.
	MeanCode(x *mat.Dense) *mat.Dense

	// Decode maps latent codes to reconstructions in (0, 1)
	Decode(z *mat.Dense) *mat.Dense

	// Backward accumulates parameter gradients for the most recent Forward
	Backward(out *Output, g Gradients)

	Params() []*layer.Param

	SetTraining(training bool)
	Training() bool
}

// Divergence is implemented by variants whose regularizer is not the closed-form
// Gaussian KL term. It returns the penalty and its gradient w.r.t. out.Latent.
type Divergence interface {
	Divergence(out *Output) (float64, *mat.Dense)
}

// New builds the variant named by cfg.Kind. rng seeds the weights and every later
// stochastic draw of the model.
func New(cfg Config, rng *rand.Rand) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := newCoder(cfg, rng)
	if err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case AE:
		return newDeterministic(c), nil
	case WAE:
		return &wasserstein{newDeterministic(c)}, nil
	case VAE:
		return newVariational(c, false)
	case VAEFlow:
		return newVariational(c, true)
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", cfg.Kind)
}
