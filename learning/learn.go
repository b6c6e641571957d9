// Package learning implements the training and evaluation passes of the piano-roll models
package learning

import "context"
import "math"
import "os"
import "path/filepath"
import "strconv"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/model"
import "github.com/neurlang/rollvae/optim"

// Learn drives one training session of a model
type Learn struct {
	HyperParameters

	Model     model.Model
	Optimizer optim.Optimizer
	Annealer  *Annealer
}

// New prepares a session with an Adam optimizer over the model's parameters
func New(m model.Model, h HyperParameters) *Learn {
	return &Learn{
		HyperParameters: h,
		Model:           m,
		Optimizer:       optim.NewAdam(m.Params(), h.LearningRate, h.WeightDecay),
		Annealer:        NewAnnealer(h),
	}
}

// Train runs one optimization pass over loader and advances the beta schedule,
// unless ctx ended the pass early
func (l *Learn) Train(ctx context.Context, loader datasets.Loader, epoch int) Stats {
	l.Model.SetTraining(true)
	s := l.pass(ctx, Train, loader, epoch, func(out *model.Output, g model.Gradients) {
		l.Optimizer.ZeroGrad()
		l.Model.Backward(out, g)
		optim.ClipGradNorm(l.Model.Params(), l.ClipNorm)
		l.Optimizer.Step()
	})
	if ctx.Err() == nil {
		l.Annealer.EpochDone(epoch)
	}
	return s
}

// Validate evaluates loader in evaluation mode without updating anything
func (l *Learn) Validate(ctx context.Context, loader datasets.Loader, epoch int) Stats {
	l.Model.SetTraining(false)
	return l.pass(ctx, Validate, loader, epoch, nil)
}

// Test is Validate accounted to the test split
func (l *Learn) Test(ctx context.Context, loader datasets.Loader, epoch int) Stats {
	l.Model.SetTraining(false)
	return l.pass(ctx, Test, loader, epoch, nil)
}

func (l *Learn) pass(ctx context.Context, split Split, loader datasets.Loader, epoch int,
	update func(*model.Output, model.Gradients)) Stats {

	s := Stats{Split: split, Epoch: epoch, Beta: l.Annealer.Beta()}
	bar := NewProgressBar(loader.NumBatches(), split.String()+" ", l.DisableProgressBar)
	defer bar.Finish()

	for x := range datasets.Prefetch(ctx, loader, l.Prefetch) {
		out := l.Model.Forward(x)
		loss, g := Compose(l.Model, out, x, s.Beta)
		if !loss.Finite() || !allFinite(out.Mu) || !allFinite(out.LogVar) {
			s.NonFinite++
			l.Logger().WithFields(log.Fields{
				"split": split,
				"epoch": epoch,
				"batch": s.Batches,
				"loss":  loss.Total,
			}).Warn("non-finite values in batch")
		}
		s.Add(loss)
		if update != nil {
			update(out, g)
		}
		bar.Increment()
	}

	l.Logger().WithFields(log.Fields{
		"split":      split,
		"epoch":      epoch,
		"loss":       s.LossMean(),
		"kl":         s.KLMean(),
		"recon":      s.ReconMean(),
		"beta":       s.Beta,
		"lr":         l.Optimizer.LearningRate(),
		"non_finite": s.NonFinite,
	}).Info("pass done")
	return s
}

func allFinite(m *mat.Dense) bool {
	if m == nil {
		return true
	}
	for _, v := range m.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ModelPath is the full-model checkpoint of epoch under prefix
func ModelPath(prefix string, epoch int) string {
	return prefix + "_epoch_" + strconv.Itoa(epoch) + ".model.zlib"
}

// WeightsPath is the parameter-only checkpoint of epoch under prefix
func WeightsPath(prefix string, epoch int) string {
	return prefix + "_epoch_" + strconv.Itoa(epoch) + ".weights.zlib"
}

// Save checkpoints the model twice: the full model under modelPrefix and the
// parameters only under weightsPrefix. Missing directories are created.
func (l *Learn) Save(modelPrefix, weightsPrefix string, epoch int) error {
	for _, prefix := range []string{modelPrefix, weightsPrefix} {
		if err := os.MkdirAll(filepath.Dir(prefix), 0755); err != nil {
			return errors.Wrapf(err, "create checkpoint directory for %s", prefix)
		}
	}
	if err := model.SaveFull(ModelPath(modelPrefix, epoch), l.Model); err != nil {
		return errors.Wrapf(err, "save model of epoch %d", epoch)
	}
	if err := model.SaveWeights(WeightsPath(weightsPrefix, epoch), l.Model); err != nil {
		return errors.Wrapf(err, "save weights of epoch %d", epoch)
	}
	return nil
}
