// Package feedforward implements a sequential feedforward network type
package feedforward

import "math/rand"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"
import "github.com/neurlang/rollvae/layer/activation"
import "github.com/neurlang/rollvae/layer/dropout"
import "github.com/neurlang/rollvae/layer/full"

// FeedforwardNetwork is the feedforward network: layers applied in order
type FeedforwardNetwork struct {
	layers   []layer.Layer
	training bool
}

// Len returns the number of layers
func (f FeedforwardNetwork) Len() int {
	return len(f.layers)
}

// GetLayer gets the n-th layer, nil when out of range
func (f FeedforwardNetwork) GetLayer(n int) layer.Layer {
	if n < 0 || n >= len(f.layers) {
		return nil
	}
	return f.layers[n]
}

// NewLayer adds a layer to the end of network
func (f *FeedforwardNetwork) NewLayer(l layer.Layer) {
	f.layers = append(f.layers, l)
}

// NewFull adds a fully connected layer with in inputs and out outputs
func (f *FeedforwardNetwork) NewFull(name string, in, out int, rng *rand.Rand) {
	f.NewLayer(full.MustNew(name, in, out, rng))
}

// NewHidden adds a fully connected layer followed by a ReLU and, for rate > 0, dropout
func (f *FeedforwardNetwork) NewHidden(name string, in, out int, rate float64, rng *rand.Rand) error {
	l, err := full.New(name, in, out, rng)
	if err != nil {
		return err
	}
	f.NewLayer(l)
	f.NewLayer(&activation.ReLU{})
	if rate > 0 {
		d, err := dropout.New(rate, rng)
		if err != nil {
			return err
		}
		f.NewLayer(d)
	}
	return nil
}

// SetTraining toggles training-only behaviour (dropout) for subsequent passes
func (f *FeedforwardNetwork) SetTraining(training bool) {
	f.training = training
}

// Training reports whether the network is in training mode
func (f FeedforwardNetwork) Training() bool {
	return f.training
}

// Forward runs x through every layer
func (f *FeedforwardNetwork) Forward(x *mat.Dense) *mat.Dense {
	for _, l := range f.layers {
		x = l.Forward(x, f.training)
	}
	return x
}

// Backward propagates dy from the output back to the input, accumulating parameter gradients
func (f *FeedforwardNetwork) Backward(dy *mat.Dense) *mat.Dense {
	for i := len(f.layers) - 1; i >= 0; i-- {
		dy = f.layers[i].Backward(dy)
	}
	return dy
}

// Params returns all trainable parameters in layer order
func (f FeedforwardNetwork) Params() (o []*layer.Param) {
	for _, l := range f.layers {
		o = append(o, l.Params()...)
	}
	return
}
