package trainer

import "context"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/metrics"
import "github.com/neurlang/rollvae/model"
import "github.com/neurlang/rollvae/optim"

// Loop wires one training run
type Loop struct {
	Learn *learning.Learn

	Train datasets.Loader
	Valid datasets.Loader
	Test  datasets.Loader

	// Sink receives the metric series, nil discards them
	Sink metrics.Sink

	// ModelPrefix and WeightsPrefix are the per-epoch checkpoint prefixes
	ModelPrefix   string
	WeightsPrefix string

	// BestModel, when set, receives the full model of the best validation epoch
	BestModel string

	// Start is the last completed epoch of a resumed run. Training continues at Start+1
	// with the beta schedule advanced past the skipped epochs.
	Start int

	// OnEpoch runs after the epoch was checkpointed, e.g. to export reconstructions
	OnEpoch func(epoch int, m model.Model) error
}

// NewLoopFunc returns the training run: for every epoch train, validate, step the
// learning rate schedule, test and checkpoint. The run stops early only on a
// checkpoint failure or when ctx is done; an epoch cut short by ctx is discarded
// before anything is saved.
func NewLoopFunc(loop Loop) func(ctx context.Context) (*Selection, error) {
	sink := loop.Sink
	if sink == nil {
		sink = metrics.Discard{}
	}
	l := loop.Learn
	plateau := optim.NewPlateau(l.Optimizer)
	evaluate := NewEvaluateFunc(l, loop.Valid, loop.Test, plateau, sink)

	return func(ctx context.Context) (*Selection, error) {
		sel := NewSelection()
		for epoch := 1; epoch <= loop.Start; epoch++ {
			l.Annealer.EpochDone(epoch)
		}
		for epoch := loop.Start + 1; epoch <= l.Epochs; epoch++ {
			if err := ctx.Err(); err != nil {
				return sel, err
			}
			train := l.Train(ctx, loop.Train, epoch)
			if err := ctx.Err(); err != nil {
				return sel, err
			}
			Report(sink, train)
			valid, test := evaluate(ctx, epoch)
			// an interrupted evaluation must neither checkpoint nor compete for best
			if err := ctx.Err(); err != nil {
				return sel, err
			}

			if err := l.Save(loop.ModelPrefix, loop.WeightsPrefix, epoch); err != nil {
				return sel, err
			}
			if sel.Observe(epoch, valid.LossMean(), test.LossMean()) && loop.BestModel != "" {
				if err := model.SaveFull(loop.BestModel, l.Model); err != nil {
					return sel, errors.Wrap(err, "save best model")
				}
			}
			if loop.OnEpoch != nil {
				if err := loop.OnEpoch(epoch, l.Model); err != nil {
					return sel, err
				}
			}

			l.Logger().WithFields(log.Fields{
				"epoch":       epoch,
				"beta":        train.Beta,
				"lr":          l.Optimizer.LearningRate(),
				"train_loss":  train.LossMean(),
				"train_kl":    train.KLMean(),
				"train_recon": train.ReconMean(),
				"valid_loss":  valid.LossMean(),
				"valid_kl":    valid.KLMean(),
				"valid_recon": valid.ReconMean(),
				"test_loss":   test.LossMean(),
				"test_kl":     test.KLMean(),
				"test_recon":  test.ReconMean(),
				"best_epoch":  sel.Epoch,
			}).Info("epoch done")
		}
		return sel, nil
	}
}
