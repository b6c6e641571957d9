// Package probe trains small classifiers on frozen latent codes to measure how much
// of each symbolic feature the latent space encodes.
package probe

import "math"
import "math/rand"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/layer/activation"
import "github.com/neurlang/rollvae/layer/batchnorm"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/net/feedforward"
import "github.com/neurlang/rollvae/optim"
import "github.com/neurlang/rollvae/trainer"

// ErrUnknownFeatureKind is returned for a feature kind no probe head exists for
var ErrUnknownFeatureKind = errors.New("unknown feature kind")

type Config struct {
	Hidden       int
	LearningRate float64
	WeightDecay  float64
	Epochs       int
	BatchSize    int
	Seed         int64

	DisableProgressBar bool
}

func DefaultConfig() Config {
	return Config{Hidden: 256, LearningRate: 1e-2, WeightDecay: 1e-4, Epochs: 100, BatchSize: 64, Seed: 1}
}

// Classes is the output width of the probe: max+1 classes for integer features,
// a single regression output for continuous ones and two classes for booleans
func Classes(kind datasets.FeatureKind, train []float64) (int, error) {
	switch kind {
	case datasets.Int:
		if len(train) == 0 {
			return 1, nil
		}
		return int(floats.Max(train)) + 1, nil
	case datasets.Float:
		return 1, nil
	case datasets.Bool:
		return 2, nil
	}
	return 0, errors.Wrapf(ErrUnknownFeatureKind, "%d", kind)
}

// Split is one partition of latent codes with the aligned feature values
type Split struct {
	Latent  mat.Matrix
	Targets []float64
}

// EpochLoss holds the mean per-sample loss of each split after an epoch
type EpochLoss struct {
	Epoch int
	Train float64
	Valid float64
	Test  float64
}

// Report is the outcome of one probe. BestTest is the test loss at BestEpoch, the
// epoch with the lowest validation loss.
type Report struct {
	Feature string
	Kind    datasets.FeatureKind
	Classes int
	History []EpochLoss

	BestEpoch int
	BestValid float64
	BestTest  float64
}

// network is full -> batch norm -> leaky relu -> full
func network(in, classes, hidden int, rng *rand.Rand) (*feedforward.FeedforwardNetwork, error) {
	norm, err := batchnorm.New("probe.norm", hidden)
	if err != nil {
		return nil, err
	}
	net := new(feedforward.FeedforwardNetwork)
	net.NewFull("probe.hidden", in, hidden, rng)
	net.NewLayer(norm)
	net.NewLayer(activation.NewLeakyReLU())
	net.NewFull("probe.out", hidden, classes, rng)
	return net, nil
}

// Train fits a probe for one feature and reports its losses
func Train(feature string, kind datasets.FeatureKind, train, valid, test Split, cfg Config) (*Report, error) {
	classes, err := Classes(kind, train.Targets)
	if err != nil {
		return nil, err
	}
	for _, s := range []Split{train, valid, test} {
		if n, _ := s.Latent.Dims(); n != len(s.Targets) {
			return nil, errors.Errorf("probe %s: %d codes for %d targets", feature, n, len(s.Targets))
		}
	}
	_, latentSize := train.Latent.Dims()

	rng := rand.New(rand.NewSource(cfg.Seed))
	net, err := network(latentSize, classes, cfg.Hidden, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "probe %s", feature)
	}
	opt := optim.NewAdam(net.Params(), cfg.LearningRate, cfg.WeightDecay)
	plateau := optim.NewPlateau(opt)

	h := head{classes: classes}
	r := &Report{Feature: feature, Kind: kind, Classes: classes}
	bar := learning.NewProgressBar(cfg.Epochs, feature+" ", cfg.DisableProgressBar)
	defer bar.Finish()

	order := make([]int, len(train.Targets))
	for i := range order {
		order[i] = i
	}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		net.SetTraining(true)
		var trainLoss float64
		for from := 0; from < len(order); from += cfg.BatchSize {
			to := from + cfg.BatchSize
			if to > len(order) {
				to = len(order)
			}
			x, y := gather(train, order[from:to])
			out := net.Forward(x)
			loss, grad := h.loss(out, y)
			opt.ZeroGrad()
			net.Backward(grad)
			opt.Step()
			trainLoss += loss
		}
		net.SetTraining(false)
		e := EpochLoss{
			Epoch: epoch,
			Train: mean(trainLoss, len(order)),
			Valid: h.evaluate(net, valid),
			Test:  h.evaluate(net, test),
		}
		plateau.Step(e.Valid)
		r.History = append(r.History, e)
		bar.Increment()
	}
	best := Best(r.History)
	r.BestEpoch, r.BestValid, r.BestTest = best.Epoch, best.Valid, best.Test

	log.WithFields(log.Fields{
		"feature":    feature,
		"classes":    classes,
		"best_epoch": r.BestEpoch,
		"best_valid": r.BestValid,
		"best_test":  r.BestTest,
	}).Info("probe trained")
	return r, nil
}

// Best selects the epoch with the lowest validation loss; its test loss is reported
// as is, even when another epoch tested lower
func Best(history []EpochLoss) EpochLoss {
	sel := trainer.NewSelection()
	for _, e := range history {
		sel.Observe(e.Epoch, e.Valid, e.Test)
	}
	for _, e := range history {
		if e.Epoch == sel.Epoch {
			return e
		}
	}
	return EpochLoss{}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func gather(s Split, rows []int) (*mat.Dense, []float64) {
	_, c := s.Latent.Dims()
	x := mat.NewDense(len(rows), c, nil)
	y := make([]float64, len(rows))
	for i, r := range rows {
		for j := 0; j < c; j++ {
			x.Set(i, j, s.Latent.At(r, j))
		}
		y[i] = s.Targets[r]
	}
	return x, y
}

// head is the loss of the probe output: summed negative log-likelihood of a
// log-softmax for classes > 1, summed squared error otherwise
type head struct {
	classes int
}

// label maps a target to a class index. Values past the classes seen in training
// fall into the last class.
func (h head) label(v float64) int {
	c := int(v)
	if c < 0 {
		c = 0
	}
	if c > h.classes-1 {
		c = h.classes - 1
	}
	return c
}

func (h head) loss(out *mat.Dense, y []float64) (float64, *mat.Dense) {
	n, c := out.Dims()
	grad := mat.NewDense(n, c, nil)
	var loss float64
	if h.classes == 1 {
		for i := 0; i < n; i++ {
			d := out.At(i, 0) - y[i]
			loss += d * d
			grad.Set(i, 0, 2*d)
		}
		return loss, grad
	}
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		max := floats.Max(row)
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - max)
		}
		logZ := max + math.Log(sum)
		target := h.label(y[i])
		loss -= row[target] - logZ
		g := grad.RawRowView(i)
		for k, v := range row {
			g[k] = math.Exp(v - logZ)
		}
		g[target]--
	}
	return loss, grad
}

func (h head) evaluate(net *feedforward.FeedforwardNetwork, s Split) float64 {
	n, _ := s.Latent.Dims()
	if n == 0 {
		return 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	x, y := gather(s, rows)
	loss, _ := h.loss(net.Forward(x), y)
	return loss / float64(n)
}
