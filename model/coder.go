package model

import "fmt"
import "math/rand"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"
import "github.com/neurlang/rollvae/layer/activation"
import "github.com/neurlang/rollvae/net/feedforward"

// coder holds the encoder trunk and the decoder shared by all variants
type coder struct {
	cfg      Config
	encoder  feedforward.FeedforwardNetwork
	decoder  feedforward.FeedforwardNetwork
	features int
	training bool
	rng      *rand.Rand
}

func newCoder(cfg Config, rng *rand.Rand) (c *coder, err error) {
	c = &coder{cfg: cfg, rng: rng}
	in := cfg.InputSize
	for i, h := range cfg.Hidden {
		if err = c.encoder.NewHidden(fmt.Sprintf("encoder.%d", i), in, h, cfg.Dropout, rng); err != nil {
			return nil, err
		}
		in = h
	}
	c.features = in

	in = cfg.LatentSize
	for i := len(cfg.Hidden) - 1; i >= 0; i-- {
		name := fmt.Sprintf("decoder.%d", len(cfg.Hidden)-1-i)
		if err = c.decoder.NewHidden(name, in, cfg.Hidden[i], cfg.Dropout, rng); err != nil {
			return nil, err
		}
		in = cfg.Hidden[i]
	}
	c.decoder.NewFull("decoder.out", in, cfg.InputSize, rng)
	c.decoder.NewLayer(&activation.Sigmoid{})
	return c, nil
}

func (c *coder) Config() Config { return c.cfg }

func (c *coder) SetTraining(training bool) {
	c.training = training
	c.encoder.SetTraining(training)
	c.decoder.SetTraining(training)
}

func (c *coder) Training() bool { return c.training }

func (c *coder) Decode(z *mat.Dense) *mat.Dense {
	return c.decoder.Forward(z)
}

// latentGrad back-propagates the reconstruction gradient through the decoder and adds
// any direct latent gradient. It returns nil when neither is present.
func (c *coder) latentGrad(g Gradients) *mat.Dense {
	var dz *mat.Dense
	if g.Recon != nil {
		dz = c.decoder.Backward(g.Recon)
	}
	return add(dz, g.Latent)
}

// add returns a + b treating nil as zero; a is modified in place when non-nil
func add(a, b *mat.Dense) *mat.Dense {
	if a == nil {
		if b == nil {
			return nil
		}
		return mat.DenseCopyOf(b)
	}
	layer.Accumulate(a, b)
	return a
}

// deterministic is an autoencoder with a single linear latent head
type deterministic struct {
	*coder
	head layer.Layer
}

func newDeterministic(c *coder) *deterministic {
	d := &deterministic{coder: c}
	var head feedforward.FeedforwardNetwork
	head.NewFull("latent", c.features, c.cfg.LatentSize, c.rng)
	d.head = head.GetLayer(0)
	return d
}

func (d *deterministic) Kind() Kind { return d.cfg.Kind }

func (d *deterministic) Encode(x *mat.Dense) (latent, mu, logvar *mat.Dense) {
	return d.head.Forward(d.encoder.Forward(x), d.training), nil, nil
}

func (d *deterministic) MeanCode(x *mat.Dense) *mat.Dense {
	defer d.SetTraining(d.training)
	d.SetTraining(false)
	return d.head.Forward(d.encoder.Forward(x), false)
}

func (d *deterministic) Forward(x *mat.Dense) *Output {
	z, _, _ := d.Encode(x)
	return &Output{Latent: z, Recon: d.Decode(z)}
}

func (d *deterministic) Backward(out *Output, g Gradients) {
	dz := d.latentGrad(g)
	if dz == nil {
		return
	}
	d.encoder.Backward(d.head.Backward(dz))
}

func (d *deterministic) Params() (o []*layer.Param) {
	o = append(o, d.encoder.Params()...)
	o = append(o, d.head.Params()...)
	return append(o, d.decoder.Params()...)
}
